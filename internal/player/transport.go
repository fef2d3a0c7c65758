// ABOUTME: Transport state for a playback session
// ABOUTME: Volume, mixer flags, pause, karaoke and the playback window
package player

import "github.com/Sendspin/midiplay/pkg/synth"

// MaxVolume is the highest master volume
const MaxVolume = 127

// Transport is the user-adjustable state owned by the control loop
type Transport struct {
	Volume  uint8
	Options synth.Option
	Paused  bool
	Karaoke bool

	// PlayFrom and PlayTo bound playback in samples; PlayTo 0 means the end
	PlayFrom uint64
	PlayTo   uint64

	Current uint64
	Total   uint64
}

// VolumeUp raises the volume by one step, reporting whether it changed
func (t *Transport) VolumeUp() bool {
	if t.Volume >= MaxVolume {
		t.Volume = MaxVolume
		return false
	}
	t.Volume++
	return true
}

// VolumeDown lowers the volume by one step, reporting whether it changed
func (t *Transport) VolumeDown() bool {
	if t.Volume == 0 {
		return false
	}
	if t.Volume > MaxVolume {
		t.Volume = MaxVolume
	}
	t.Volume--
	return true
}

// NormalizeWindow drops a PlayTo that lies before PlayFrom.
// It reports whether PlayTo was discarded.
func (t *Transport) NormalizeWindow() bool {
	if t.PlayTo != 0 && t.PlayTo < t.PlayFrom {
		t.PlayTo = 0
		return true
	}
	return false
}

// ChunkBytes returns how many bytes to request next. With a window upper
// bound it never reaches past PlayTo; ok is false once PlayTo is reached.
func (t *Transport) ChunkBytes(chunk, frameSize int) (n int, ok bool) {
	if t.PlayTo == 0 {
		return chunk, true
	}
	if t.Current >= t.PlayTo {
		return 0, false
	}
	remaining := (t.PlayTo - t.Current) * uint64(frameSize)
	if remaining < uint64(chunk) {
		return int(remaining), true
	}
	return chunk, true
}

// SeekBackTarget is one second (rate samples) before the current position
func (t *Transport) SeekBackTarget(rate int) uint64 {
	if t.Current < uint64(rate) {
		return 0
	}
	return t.Current - uint64(rate)
}

// SeekForwardTarget is one second after the current position, capped at the total
func (t *Transport) SeekForwardTarget(rate int) uint64 {
	if t.Current >= t.Total || t.Total-t.Current < uint64(rate) {
		return t.Total
	}
	return t.Current + uint64(rate)
}

// Modes renders the mixer flags the status line shows
func (t *Transport) Modes() string {
	m := []byte("    ")
	if t.Options.Has(synth.LogVolume) {
		m[0] = 'l'
	}
	if t.Options.Has(synth.Reverb) {
		m[1] = 'r'
	}
	if t.Options.Has(synth.EnhancedResampling) {
		m[2] = 'e'
	}
	return string(m)
}
