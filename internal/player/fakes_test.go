// ABOUTME: Test doubles for the control loop
// ABOUTME: Scripted decoder, recording output, key script and display
package player

import (
	"errors"
	"time"

	"github.com/Sendspin/midiplay/pkg/audio"
	"github.com/Sendspin/midiplay/pkg/synth"
)

const testRate = 32072

var testFormat = audio.Stereo16(testRate)

type fakeDecoder struct {
	cur, total uint64
	opts       synth.Option
	lyrics     map[uint64]synth.Lyric
	lyric      synth.Lyric
	hasLyric   bool
	midi       []byte
	midiErr    error

	outputs   int
	seeks     []uint64
	songSeeks []int
	setOpts   []synth.Option
	closed    bool
}

func newFakeDecoder(total uint64) *fakeDecoder {
	return &fakeDecoder{total: total}
}

func (d *fakeDecoder) Output(buf []byte) (int, error) {
	d.outputs++
	if d.cur >= d.total {
		return 0, nil
	}
	n := min(uint64(len(buf)/4), d.total-d.cur)
	for i := range buf[:n*4] {
		buf[i] = 0x11
	}
	for at, l := range d.lyrics {
		if at >= d.cur && at < d.cur+n {
			d.lyric, d.hasLyric = l, true
		}
	}
	d.cur += n
	return int(n * 4), nil
}

func (d *fakeDecoder) Info() synth.Info {
	return synth.Info{CurrentSample: d.cur, ApproxTotalSamples: d.total, Options: d.opts}
}

func (d *fakeDecoder) Lyric() (synth.Lyric, bool) { return d.lyric, d.hasLyric }

func (d *fakeDecoder) SetOption(opt synth.Option, on bool) error {
	d.setOpts = append(d.setOpts, opt)
	d.opts = d.opts.With(opt, on)
	return nil
}

func (d *fakeDecoder) FastSeek(sample *uint64) error {
	if *sample > d.total {
		*sample = d.total
	}
	d.seeks = append(d.seeks, *sample)
	d.cur = *sample
	return nil
}

func (d *fakeDecoder) SongSeek(dir int) error {
	d.songSeeks = append(d.songSeeks, dir)
	return nil
}

func (d *fakeDecoder) MidiOutput() ([]byte, error) { return d.midi, d.midiErr }

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

func sourceOf(name string, d *fakeDecoder) Source {
	return Source{Name: name, Open: func() (Decoder, error) { return d, nil }}
}

func failingSource(name string) Source {
	return Source{Name: name, Open: func() (Decoder, error) {
		return nil, errors.New("unable to load " + name)
	}}
}

type fakeOutput struct {
	opened, closed  int
	pauses, resumes int
	writes          [][]byte
	openErr         error
	failWrite       int // 1-based write index that fails; 0 never
}

var errDeviceGone = errors.New("device disconnected")

func (o *fakeOutput) Open(audio.Format) error {
	o.opened++
	return o.openErr
}

func (o *fakeOutput) Write(buf []byte) (int, error) {
	o.writes = append(o.writes, append([]byte(nil), buf...))
	if o.failWrite == len(o.writes) {
		return 0, errDeviceGone
	}
	return len(buf), nil
}

func (o *fakeOutput) Pause() error  { o.pauses++; return nil }
func (o *fakeOutput) Resume() error { o.resumes++; return nil }
func (o *fakeOutput) Close() error  { o.closed++; return nil }

// audioFrames counts frames of non-silent writes
func (o *fakeOutput) audioFrames() uint64 {
	var n uint64
	for _, w := range o.writes {
		if !isSilence(w) {
			n += uint64(len(w) / 4)
		}
	}
	return n
}

func (o *fakeOutput) silenceWrites() int {
	n := 0
	for _, w := range o.writes {
		if isSilence(w) {
			n++
		}
	}
	return n
}

func isSilence(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return len(b) > 0
}

// scriptKeys returns one scripted key per poll; 0 means no key that tick
type scriptKeys struct {
	keys []byte
}

func (k *scriptKeys) PollKey() (byte, bool) {
	if len(k.keys) == 0 {
		return 0, false
	}
	key := k.keys[0]
	k.keys = k.keys[1:]
	return key, key != 0
}

type fakeMixer struct {
	volumes []uint8
}

func (m *fakeMixer) SetMasterVolume(v uint8) { m.volumes = append(m.volumes, v) }

type recordDisplay struct {
	started  []string
	skipped  []string
	statuses []Status
	messages []string
	ended    int
}

func (d *recordDisplay) TrackStarted(name string, _ synth.Info, _ int) {
	d.started = append(d.started, name)
}
func (d *recordDisplay) TrackSkipped(name string, _ error) { d.skipped = append(d.skipped, name) }
func (d *recordDisplay) Status(st Status)                  { d.statuses = append(d.statuses, st) }
func (d *recordDisplay) Message(msg string)                { d.messages = append(d.messages, msg) }
func (d *recordDisplay) TrackEnded()                       { d.ended++ }

type harness struct {
	out     *fakeOutput
	keys    *scriptKeys
	mixer   *fakeMixer
	display *recordDisplay
	sleeps  int
}

func newHarness(keys ...byte) *harness {
	return &harness{
		out:     &fakeOutput{},
		keys:    &scriptKeys{keys: keys},
		mixer:   &fakeMixer{},
		display: &recordDisplay{},
	}
}

func (h *harness) config() Config {
	return Config{
		Output:  h.out,
		Format:  testFormat,
		Mixer:   h.mixer,
		Keys:    h.keys,
		Display: h.display,
		Volume:  100,
		Sleep:   func(time.Duration) { h.sleeps++ },
	}
}
