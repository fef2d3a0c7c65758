// ABOUTME: Session-wide synthesizer engine
// ABOUTME: Holds sample rate, default options and master volume; opens tracks
package synth

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

const (
	MinRate = 11025
	MaxRate = 65535

	// DefaultMasterVolume is the master volume a new engine starts with
	DefaultMasterVolume = 100
)

var (
	// ErrClosed is returned by operations on a closed track
	ErrClosed = errors.New("track is closed")

	// ErrNoSection is returned by SongSeek when no further section exists
	ErrNoSection = errors.New("no further song section")
)

// Engine renders tracks at one sample rate
type Engine struct {
	rate     int
	defaults Option
	master   atomic.Uint32
}

// NewEngine creates an engine; defaults seed the options of every opened track
func NewEngine(rate int, defaults Option) (*Engine, error) {
	if rate < MinRate || rate > MaxRate {
		return nil, fmt.Errorf("sample rate %d out of range (%d-%d)", rate, MinRate, MaxRate)
	}
	e := &Engine{rate: rate, defaults: defaults}
	e.master.Store(DefaultMasterVolume)
	return e, nil
}

// Rate returns the output sample rate
func (e *Engine) Rate() int { return e.rate }

// SetMasterVolume sets the global volume (0-127) for all tracks
func (e *Engine) SetMasterVolume(v uint8) {
	if v > 127 {
		v = 127
	}
	e.master.Store(uint32(v))
}

// MasterVolume returns the global volume
func (e *Engine) MasterVolume() uint8 {
	return uint8(e.master.Load())
}

// Open loads a MIDI file from disk
func (e *Engine) Open(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s: %w", path, err)
	}
	return e.OpenBuffer(data)
}

// OpenBuffer loads a MIDI file image from memory
func (e *Engine) OpenBuffer(data []byte) (*Track, error) {
	seq, err := parseSequence(unwrapRMID(data), e.rate, e.defaults)
	if err != nil {
		return nil, err
	}
	return newTrack(e, seq), nil
}

// ConvertToMidi parses a file and re-encodes all of its events as SMF
func (e *Engine) ConvertToMidi(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s: %w", path, err)
	}
	seq, err := parseSequence(unwrapRMID(data), e.rate, e.defaults&^StripSilence)
	if err != nil {
		return nil, err
	}
	return encodeSMF(seq.events, seq.timeFormat, e.defaults.Has(SaveAsType0))
}

// unwrapRMID returns the SMF payload of a RIFF RMID file, or data unchanged
func unwrapRMID(data []byte) []byte {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("RMID")) {
		return data
	}
	rest := data[12:]
	for len(rest) >= 8 {
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		body := rest[8:]
		if size > len(body) {
			size = len(body)
		}
		if bytes.Equal(rest[0:4], []byte("data")) {
			return body[:size]
		}
		// chunks are word aligned
		skip := 8 + size + size&1
		if skip > len(rest) {
			break
		}
		rest = rest[skip:]
	}
	return data
}
