// ABOUTME: Null output backend
// ABOUTME: Accepts and discards PCM, used for capture-only and benchmark runs
package output

import "github.com/Sendspin/midiplay/pkg/audio"

// NoOut discards everything written to it
type NoOut struct {
	open bool
}

// NewNoOut creates a null output
func NewNoOut() Output {
	return &NoOut{}
}

func (n *NoOut) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return err
	}
	n.open = true
	return nil
}

func (n *NoOut) Write(buf []byte) (int, error) {
	if !n.open {
		return 0, ErrNotOpen
	}
	return len(buf), nil
}

func (n *NoOut) Pause() error  { return nil }
func (n *NoOut) Resume() error { return nil }

func (n *NoOut) Close() error {
	n.open = false
	return nil
}
