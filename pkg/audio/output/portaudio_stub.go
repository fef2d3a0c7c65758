//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Keeps the table entry present but disabled when built without the tag
package output

import (
	"errors"

	"github.com/Sendspin/midiplay/pkg/audio"
)

const portaudioEnabled = false

var errNoPortAudio = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

func (p *PortAudio) Open(audio.Format) error   { return errNoPortAudio }
func (p *PortAudio) Write([]byte) (int, error) { return 0, errNoPortAudio }
func (p *PortAudio) Pause() error              { return nil }
func (p *PortAudio) Resume() error             { return nil }
func (p *PortAudio) Close() error              { return nil }
