// ABOUTME: An opened MIDI file being rendered
// ABOUTME: Pull-based PCM output, progress info, lyrics, option toggles and seeking
package synth

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// bytesPerFrame is 16-bit stereo
const bytesPerFrame = 4

// Info is a progress snapshot of a track
type Info struct {
	CurrentSample      uint64
	ApproxTotalSamples uint64
	Options            Option
	Sections           int
	Format             uint16
	Tracks             int
}

// Lyric is the most recent lyric event; Seq changes with every new event
type Lyric struct {
	Text string
	Seq  int
}

// Track renders one MIDI file
type Track struct {
	mu       sync.Mutex
	engine   *Engine
	seq      *sequence
	opts     Option
	pos      int
	cur      uint64
	channels [16]channel
	voices   [maxVoices]voice
	serial   uint64
	reverb   *reverb
	lyric    Lyric
	mix      []float32
	closed   bool
}

func newTrack(e *Engine, seq *sequence) *Track {
	t := &Track{
		engine: e,
		seq:    seq,
		opts:   e.defaults,
		reverb: newReverb(e.rate),
	}
	t.resetState()
	return t
}

func (t *Track) resetState() {
	for i := range t.channels {
		t.channels[i].reset()
	}
	t.silence()
	t.pos = 0
	t.cur = 0
}

// silence kills every voice and clears the reverb tail
func (t *Track) silence() {
	for i := range t.voices {
		t.voices[i].active = false
	}
	t.reverb.reset()
}

// Output renders up to len(buf) bytes of 16-bit LE stereo PCM.
// It returns 0 once the end of the track has been reached.
func (t *Track) Output(buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrClosed
	}
	frames := uint64(len(buf) / bytesPerFrame)
	if t.cur >= t.seq.total || frames == 0 {
		return 0, nil
	}
	frames = min(frames, t.seq.total-t.cur)

	var done uint64
	for done < frames {
		t.dispatchDue(true)
		n := frames - done
		if t.pos < len(t.seq.events) {
			n = min(n, t.seq.events[t.pos].sample-t.cur)
		}
		t.render(buf[done*bytesPerFrame:], int(n))
		done += n
		t.cur += n
	}
	return int(frames * bytesPerFrame), nil
}

// dispatchDue applies every event scheduled at or before the current sample
func (t *Track) dispatchDue(sound bool) {
	for t.pos < len(t.seq.events) && t.seq.events[t.pos].sample <= t.cur {
		t.dispatch(t.seq.events[t.pos], sound)
		t.pos++
	}
}

func (t *Track) dispatch(ev timedEvent, sound bool) {
	var text string
	switch {
	case ev.msg.GetMetaLyric(&text):
		t.setLyric(text)
		return
	case ev.msg.GetMetaText(&text):
		if t.opts.Has(TextAsLyric) {
			t.setLyric(text)
		}
		return
	case ev.msg.IsMeta():
		return
	}

	msg := midi.Message(ev.msg)
	var ch, key, vel, cc, val, prog uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if sound {
			t.noteOn(ch, key, vel)
		}
	case msg.GetNoteEnd(&ch, &key):
		t.noteOff(ch, key)
	case msg.GetControlChange(&ch, &cc, &val):
		t.controlChange(ch, cc, val)
	case msg.GetProgramChange(&ch, &prog):
		t.channels[ch].program = prog
	case msg.GetPitchBend(&ch, &rel, &abs):
		c := &t.channels[ch]
		c.bend = float64(rel) / 8192 * c.bendRange
	}
}

// setLyric records a lyric, dropping karaoke markup
func (t *Track) setLyric(text string) {
	if strings.HasPrefix(text, "@") {
		return
	}
	text = strings.TrimLeft(text, `/\`)
	text = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, text)
	t.lyric = Lyric{Text: text, Seq: t.lyric.Seq + 1}
}

func (t *Track) noteOn(ch, key, vel uint8) {
	// retrigger replaces a voice already playing this key
	t.noteOff(ch, key)

	v := t.allocVoice()
	c := &t.channels[ch]
	var p patch
	if ch == percussionChan {
		var coef float32
		p, v.noise, coef = drumPatch(key)
		v.noiseCoef = coef
		v.lfsr = noiseSeed
		v.noiseState = 0
	} else {
		p = patchFor(c.program, c.bank)
		v.noise = false
	}

	t.serial++
	v.active = true
	v.serial = t.serial
	v.channel = ch
	v.note = key
	v.velocity = vel
	v.held = true
	v.sustained = false
	v.table = &wavetables[p.shape]
	v.gain = p.gain
	v.phase = 0
	v.env = newEnvelope(p, float64(t.engine.rate))
}

// allocVoice returns a free voice, stealing the oldest when all are busy
func (t *Track) allocVoice() *voice {
	oldest := 0
	for i := range t.voices {
		if !t.voices[i].active {
			return &t.voices[i]
		}
		if t.voices[i].serial < t.voices[oldest].serial {
			oldest = i
		}
	}
	return &t.voices[oldest]
}

func (t *Track) noteOff(ch, key uint8) {
	if ch == percussionChan {
		return
	}
	for i := range t.voices {
		v := &t.voices[i]
		if !v.active || !v.held || v.channel != ch || v.note != key {
			continue
		}
		if t.channels[ch].sustain {
			v.held = false
			v.sustained = true
			continue
		}
		v.release()
	}
}

func (t *Track) controlChange(ch, cc, val uint8) {
	c := &t.channels[ch]
	switch cc {
	case 0:
		c.bank = val
	case 6:
		// data entry for RPN 0, pitch bend sensitivity
		if c.rpn == [2]uint8{0, 0} {
			c.bendRange = float64(val)
		}
	case 7:
		c.volume = val
	case 10:
		c.pan = val
	case 11:
		c.expression = val
	case 64:
		c.sustain = val >= 64
		if !c.sustain {
			for i := range t.voices {
				v := &t.voices[i]
				if v.active && v.channel == ch && v.sustained {
					v.release()
				}
			}
		}
	case 100:
		c.rpn[1] = val
	case 101:
		c.rpn[0] = val
	case 120:
		for i := range t.voices {
			if t.voices[i].channel == ch {
				t.voices[i].active = false
			}
		}
	case 121:
		c.resetControllers()
	case 123:
		for i := range t.voices {
			v := &t.voices[i]
			if v.active && v.channel == ch && (v.held || v.sustained) {
				v.release()
			}
		}
	}
}

// render synthesizes n frames into dst as 16-bit LE stereo
func (t *Track) render(dst []byte, n int) {
	if n <= 0 {
		return
	}
	if cap(t.mix) < 2*n {
		t.mix = make([]float32, 2*n)
	}
	mix := t.mix[:2*n]
	clear(mix)

	rate := float64(t.engine.rate)
	for i := range t.voices {
		v := &t.voices[i]
		if v.active {
			v.render(mix, n, &t.channels[v.channel], rate, t.opts)
		}
	}

	if t.opts.Has(Reverb) {
		t.reverb.process(mix)
	}

	master := float32(t.engine.MasterVolume()) / 127
	for i, s := range mix {
		s *= master
		s = float32(math.Max(-1, math.Min(1, float64(s))))
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(s*math.MaxInt16)))
	}
}

// Info returns the current progress snapshot
func (t *Track) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{
		CurrentSample:      t.cur,
		ApproxTotalSamples: t.seq.total,
		Options:            t.opts,
		Sections:           len(t.seq.sections),
		Format:             t.seq.format,
		Tracks:             t.seq.tracks,
	}
}

// Lyric returns the latest lyric, if any was seen
func (t *Track) Lyric() (Lyric, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lyric, t.lyric.Seq > 0
}

// SetOption toggles mixer flags for this track only.
// RoundTempo and StripSilence are recorded but only shape timing at open.
func (t *Track) SetOption(opt Option, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	all := LogVolume | EnhancedResampling | Reverb | loadOptions | TextAsLyric | SaveAsType0
	if opt == 0 || opt&^all != 0 {
		return fmt.Errorf("invalid option %#x", uint16(opt))
	}
	if opt.Has(Reverb) && on && !t.opts.Has(Reverb) {
		t.reverb.reset()
	}
	t.opts = t.opts.With(opt, on)
	return nil
}

// FastSeek moves playback to *sample, clamping it in place to the track length.
// Controller state is replayed up to the target; sounding notes are cut.
func (t *Track) FastSeek(sample *uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.seekLocked(sample)
	return nil
}

func (t *Track) seekLocked(sample *uint64) {
	if *sample > t.seq.total {
		*sample = t.seq.total
	}
	if *sample < t.cur {
		t.resetState()
	}
	for t.pos < len(t.seq.events) && t.seq.events[t.pos].sample < *sample {
		t.dispatch(t.seq.events[t.pos], false)
		t.pos++
	}
	t.silence()
	t.cur = *sample
}

// SongSeek moves to the previous (-1), current (0) or next (+1) song section
func (t *Track) SongSeek(dir int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	idx := t.seq.sectionIndex(t.cur)
	switch {
	case dir < 0:
		idx = max(idx-1, 0)
	case dir > 0:
		idx++
		if idx >= len(t.seq.sections) {
			return ErrNoSection
		}
	}
	target := t.seq.sections[idx]
	t.seekLocked(&target)
	return nil
}

// MidiOutput encodes the events played so far as a Standard MIDI File
func (t *Track) MidiOutput() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	return encodeSMF(t.seq.events[:t.pos], t.seq.timeFormat, t.opts.Has(SaveAsType0))
}

// Close releases the track; further calls return ErrClosed
func (t *Track) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.closed = true
	t.mix = nil
	return nil
}
