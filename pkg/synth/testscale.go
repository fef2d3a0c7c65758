// ABOUTME: Built-in test song
// ABOUTME: Generates a one-octave C major scale with solfege lyrics
package synth

import (
	"bytes"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const testTicks = 480

var testScale = []struct {
	key   uint8
	lyric string
}{
	{60, "Do "}, {62, "Re "}, {64, "Mi "}, {65, "Fa "},
	{67, "So "}, {69, "La "}, {71, "Ti "}, {72, "Do"},
}

// TestScale returns a format 0 SMF playing a C major scale on the given bank and patch
func TestScale(bank, patch uint8) ([]byte, error) {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.ControlChange(0, 0, bank&0x7f))
	tr.Add(0, midi.ProgramChange(0, patch&0x7f))
	for _, n := range testScale {
		tr.Add(0, smf.MetaLyric(n.lyric))
		tr.Add(0, midi.NoteOn(0, n.key, 100))
		tr.Add(testTicks, midi.NoteOff(0, n.key))
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(testTicks)
	if err := s.Add(tr); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode test scale: %w", err)
	}
	return buf.Bytes(), nil
}
