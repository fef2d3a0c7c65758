// ABOUTME: MIDI capture file naming and writing
// ABOUTME: Derives <name>.mid from the source path and never overwrites
package player

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// midiNameBuffer is the size of the derived name including a terminator
const midiNameBuffer = 1024

// ErrFileExists is returned when the derived capture file is already present
var ErrFileExists = errors.New("already exists")

// MidiFileName derives the capture file name for src. A basename extension
// of up to four characters including the dot is replaced by ".mid";
// otherwise ".mid" is appended, truncating the name to fit.
func MidiFileName(src string) string {
	const maxLen = midiNameBuffer - 1
	const suffix = ".mid"

	name := src
	if len(name) > maxLen {
		name = name[:maxLen]
	}

	sep := strings.LastIndexAny(name, "/"+string(filepath.Separator))
	if dot := strings.LastIndexByte(name, '.'); dot > sep && len(name)-dot <= len(suffix) {
		if dot <= maxLen-len(suffix) {
			return name[:dot] + suffix
		}
	}

	if len(name) > maxLen-len(suffix) {
		name = name[:maxLen-len(suffix)]
	}
	return name + suffix
}

// WriteMidiFile writes data to name unless something already exists there
func WriteMidiFile(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s %w", name, ErrFileExists)
		}
		return fmt.Errorf("unable to open file for writing: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed writing %s: %w", name, err)
	}
	return f.Close()
}
