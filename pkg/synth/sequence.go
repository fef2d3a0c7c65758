// ABOUTME: SMF parsing into a sample-timed event list
// ABOUTME: Applies the tempo map, section detection and leading-silence stripping
package synth

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// defaultTempo is 120 BPM in microseconds per quarter note
	defaultTempo = 500000.0

	// tailSeconds of release time are added after the last event
	tailSeconds = 0.25
)

// timedEvent is one source event placed on the output timeline
type timedEvent struct {
	sample uint64
	at     uint64 // absolute tick on the merged timeline
	tick   uint64 // absolute tick within the source track
	track  int
	msg    smf.Message
}

// sequence is a parsed file ready for rendering
type sequence struct {
	events     []timedEvent
	sections   []uint64
	total      uint64
	timeFormat smf.TimeFormat
	tracks     int
	format     uint16
}

// tempoClock converts absolute ticks to samples while walking events in order
type tempoClock struct {
	rate       float64
	ppq        float64
	usPerTick  float64
	fixed      bool
	round      bool
	lastTick   uint64
	lastSample float64
}

func newTempoClock(tf smf.TimeFormat, rate int, round bool) (*tempoClock, error) {
	c := &tempoClock{rate: float64(rate), round: round}
	switch v := tf.(type) {
	case smf.MetricTicks:
		if v.Resolution() == 0 {
			return nil, errors.New("invalid time division: 0 ticks per quarter note")
		}
		c.ppq = float64(v.Resolution())
		c.usPerTick = defaultTempo / c.ppq
	case smf.TimeCode:
		fps := float64(v.FramesPerSecond)
		if fps == 29 {
			fps = 29.97
		}
		if fps == 0 || v.SubFrames == 0 {
			return nil, fmt.Errorf("invalid SMPTE time division: %v", v)
		}
		c.usPerTick = 1e6 / (fps * float64(v.SubFrames))
		c.fixed = true
	default:
		return nil, fmt.Errorf("unsupported time format %T", tf)
	}
	return c, nil
}

// at returns the sample position of tick, which must not precede the last call
func (c *tempoClock) at(tick uint64) uint64 {
	if tick > c.lastTick {
		c.lastSample += float64(tick-c.lastTick) * c.usPerTick * c.rate / 1e6
		c.lastTick = tick
	}
	return uint64(math.Round(c.lastSample))
}

// setTempo applies a tempo change at the last position passed to at
func (c *tempoClock) setTempo(bpm float64) {
	if c.fixed || bpm <= 0 {
		return
	}
	if c.round {
		bpm = math.Max(1, math.Round(bpm))
	}
	c.usPerTick = (60e6 / bpm) / c.ppq
}

// parseSequence reads an SMF image and lays its events out in samples
func parseSequence(data []byte, rate int, opts Option) (*sequence, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid midi data: %w", err)
	}
	if len(s.Tracks) == 0 {
		return nil, errors.New("invalid midi data: no tracks")
	}

	seq := &sequence{
		timeFormat: s.TimeFormat,
		tracks:     len(s.Tracks),
		format:     s.Format(),
	}

	// Format 2 tracks are independent songs played back to back
	sequential := seq.format == 2
	var (
		base         uint64
		end          uint64
		sectionTicks []uint64
	)
	for i, track := range s.Tracks {
		if sequential {
			sectionTicks = append(sectionTicks, base)
		}
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			if ev.Message.Is(smf.MetaEndOfTrackMsg) {
				continue
			}
			seq.events = append(seq.events, timedEvent{
				at:    base + tick,
				tick:  tick,
				track: i,
				msg:   ev.Message,
			})
		}
		if sequential {
			base += tick
			end = base
		} else {
			end = max(end, tick)
		}
	}

	sort.SliceStable(seq.events, func(a, b int) bool {
		return seq.events[a].at < seq.events[b].at
	})

	clock, err := newTempoClock(s.TimeFormat, rate, opts.Has(RoundTempo))
	if err != nil {
		return nil, err
	}

	var markers []uint64
	sectionIdx := 0
	var sections []uint64
	for i := range seq.events {
		ev := &seq.events[i]
		for sectionIdx < len(sectionTicks) && sectionTicks[sectionIdx] <= ev.at {
			sections = append(sections, clock.at(sectionTicks[sectionIdx]))
			sectionIdx++
		}
		ev.sample = clock.at(ev.at)

		var bpm float64
		var text string
		switch {
		case ev.msg.GetMetaTempo(&bpm):
			clock.setTempo(bpm)
		case !sequential && ev.msg.GetMetaMarker(&text):
			markers = append(markers, ev.sample)
		}
	}
	endSample := clock.at(end)
	for ; sectionIdx < len(sectionTicks); sectionIdx++ {
		sections = append(sections, endSample)
	}

	if opts.Has(StripSilence) {
		if first, ok := firstNoteSample(seq.events); ok && first > 0 {
			for i := range seq.events {
				seq.events[i].sample = subClamp(seq.events[i].sample, first)
			}
			for i := range sections {
				sections[i] = subClamp(sections[i], first)
			}
			for i := range markers {
				markers[i] = subClamp(markers[i], first)
			}
			endSample = subClamp(endSample, first)
		}
	}

	seq.total = endSample + uint64(float64(rate)*tailSeconds)
	if sequential {
		seq.sections = uniqueSorted(sections)
	} else {
		seq.sections = uniqueSorted(append([]uint64{0}, markers...))
	}
	return seq, nil
}

func firstNoteSample(events []timedEvent) (uint64, bool) {
	var ch, key, vel uint8
	for _, ev := range events {
		if midi.Message(ev.msg).GetNoteStart(&ch, &key, &vel) {
			return ev.sample, true
		}
	}
	return 0, false
}

func subClamp(v, d uint64) uint64 {
	if v < d {
		return 0
	}
	return v - d
}

func uniqueSorted(v []uint64) []uint64 {
	sort.Slice(v, func(a, b int) bool { return v[a] < v[b] })
	out := v[:0]
	for i, x := range v {
		if i == 0 || x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

// sectionIndex returns the index of the section containing sample
func (s *sequence) sectionIndex(sample uint64) int {
	i := sort.Search(len(s.sections), func(i int) bool { return s.sections[i] > sample })
	return max(i-1, 0)
}
