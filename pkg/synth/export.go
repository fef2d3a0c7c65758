// ABOUTME: Standard MIDI File export
// ABOUTME: Re-encodes parsed events as a single merged track or one track per source track
package synth

import (
	"bytes"
	"fmt"

	"gitlab.com/gomidi/midi/v2/smf"
)

// encodeSMF writes events (in timeline order) as SMF bytes
func encodeSMF(events []timedEvent, tf smf.TimeFormat, type0 bool) ([]byte, error) {
	var s *smf.SMF
	if type0 {
		s = smf.New()
	} else {
		s = smf.NewSMF1()
	}
	s.TimeFormat = tf

	if type0 {
		var tr smf.Track
		var last uint64
		for _, ev := range events {
			tr.Add(uint32(ev.at-last), ev.msg)
			last = ev.at
		}
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			return nil, fmt.Errorf("failed to add track: %w", err)
		}
	} else {
		count := 1
		for _, ev := range events {
			count = max(count, ev.track+1)
		}
		tracks := make([]smf.Track, count)
		last := make([]uint64, count)
		for _, ev := range events {
			tracks[ev.track].Add(uint32(ev.tick-last[ev.track]), ev.msg)
			last[ev.track] = ev.tick
		}
		for i := range tracks {
			tracks[i].Close(0)
			if err := s.Add(tracks[i]); err != nil {
				return nil, fmt.Errorf("failed to add track %d: %w", i, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode midi: %w", err)
	}
	return buf.Bytes(), nil
}
