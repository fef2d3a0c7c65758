// ABOUTME: Audio output interface definition
// ABOUTME: Common lifecycle contract shared by every playback backend
package output

import (
	"errors"

	"github.com/Sendspin/midiplay/pkg/audio"
)

var (
	// ErrNotOpen is returned by Write on a backend that was never opened or was closed
	ErrNotOpen = errors.New("output not open")

	// ErrAlreadyExists is returned by capture backends whose target file is present
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnknownBackend is returned by Lookup for names outside the table
	ErrUnknownBackend = errors.New("unknown playback backend")
)

// Output represents an audio output device or capture file
type Output interface {
	// Open acquires the device or file for the given PCM format
	Open(format audio.Format) error

	// Write pushes interleaved PCM bytes and returns how many were accepted.
	// Any error is fatal for the session.
	Write(buf []byte) (int, error)

	// Pause silences output without releasing the handle (may be a no-op)
	Pause() error

	// Resume undoes Pause (may be a no-op)
	Resume() error

	// Close releases the handle. It is safe without a prior Open and
	// leaves the backend ready for another Open.
	Close() error
}

// Options carries per-session backend parameters
type Options struct {
	// Path is the capture target for file backends
	Path string

	// Device names the sink for device backends that can pick one
	Device string
}
