// ABOUTME: WAVE file capture backend
// ABOUTME: Writes session PCM to a RIFF/WAVE file, fixing up the header on close
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Sendspin/midiplay/pkg/audio"
	"github.com/Sendspin/midiplay/pkg/audio/decode"
)

// Wave captures PCM into a .wav file
type Wave struct {
	path    string
	file    *os.File
	enc     *wav.Encoder
	decoder *decode.PCMDecoder
	buf     *goaudio.IntBuffer
}

// NewWave creates a WAVE capture backend writing to path
func NewWave(path string) Output {
	return &Wave{path: path}
}

// createExclusive opens path for writing, refusing to replace an existing file
func createExclusive(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("no capture file given")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%s %w", path, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

// Open creates the capture file
func (w *Wave) Open(format audio.Format) error {
	if w.file != nil {
		return fmt.Errorf("%s is already open", w.path)
	}
	if err := format.Validate(); err != nil {
		return err
	}

	decoder, err := decode.NewPCM(format)
	if err != nil {
		return err
	}

	f, err := createExclusive(w.path)
	if err != nil {
		return err
	}

	w.file = f
	w.decoder = decoder
	w.enc = wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, 1)
	w.buf = &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		SourceBitDepth: format.BitDepth,
	}

	log.Printf("WAVE capture opened: %s (%s)", w.path, format)
	return nil
}

// Write appends PCM to the file
func (w *Wave) Write(buf []byte) (int, error) {
	if w.enc == nil {
		return 0, ErrNotOpen
	}

	samples, err := w.decoder.Decode(buf)
	if err != nil {
		return 0, err
	}

	data := w.buf.Data[:0]
	for _, s := range samples {
		if w.buf.SourceBitDepth == 16 {
			data = append(data, int(audio.SampleToInt16(s)))
		} else {
			data = append(data, int(s))
		}
	}
	w.buf.Data = data

	if err := w.enc.Write(w.buf); err != nil {
		return 0, fmt.Errorf("wav write failed: %w", err)
	}
	return len(buf), nil
}

func (w *Wave) Pause() error  { return nil }
func (w *Wave) Resume() error { return nil }

// Close finalizes the RIFF header and closes the file
func (w *Wave) Close() error {
	if w.file == nil {
		return nil
	}

	var errs []error
	if err := w.enc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("wav finalize failed: %w", err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, err)
	}
	w.decoder.Close()

	w.file = nil
	w.enc = nil
	w.decoder = nil
	w.buf = nil
	return errors.Join(errs...)
}
