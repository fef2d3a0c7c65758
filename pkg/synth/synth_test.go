// ABOUTME: Tests for the synthesizer engine and tracks
// ABOUTME: Covers timing, sections, seeking, lyrics, options and SMF export
package synth

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const testRate = 32000

// buildSMF encodes tracks at 480 ticks per quarter
func buildSMF(t *testing.T, tracks ...smf.Track) []byte {
	t.Helper()
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(480)
	for _, tr := range tracks {
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			t.Fatalf("failed to add track: %v", err)
		}
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("failed to write smf: %v", err)
	}
	return buf.Bytes()
}

func newTestEngine(t *testing.T, opts Option) *Engine {
	t.Helper()
	eng, err := NewEngine(testRate, opts)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng
}

func openScale(t *testing.T, eng *Engine) *Track {
	t.Helper()
	data, err := TestScale(0, 0)
	if err != nil {
		t.Fatalf("failed to build test scale: %v", err)
	}
	tr, err := eng.OpenBuffer(data)
	if err != nil {
		t.Fatalf("failed to open test scale: %v", err)
	}
	return tr
}

// drain pulls the track to the end, returning frames rendered and the peak sample
func drain(t *testing.T, tr *Track) (uint64, int16) {
	t.Helper()
	buf := make([]byte, 16384)
	var frames uint64
	var peak int16
	for {
		n, err := tr.Output(buf)
		if err != nil {
			t.Fatalf("output failed: %v", err)
		}
		if n == 0 {
			return frames, peak
		}
		frames += uint64(n / 4)
		for i := 0; i < n; i += 2 {
			s := int16(binary.LittleEndian.Uint16(buf[i:]))
			if s < 0 {
				s = -s
			}
			peak = max(peak, s)
		}
	}
}

func TestNewEngineRateRange(t *testing.T) {
	tests := []struct {
		rate int
		ok   bool
	}{
		{11025, true},
		{32072, true},
		{65535, true},
		{11024, false},
		{0, false},
		{65536, false},
	}
	for _, tt := range tests {
		_, err := NewEngine(tt.rate, 0)
		if (err == nil) != tt.ok {
			t.Errorf("NewEngine(%d): ok=%v, err=%v", tt.rate, tt.ok, err)
		}
	}
}

func TestScaleLengthAndLevel(t *testing.T) {
	tr := openScale(t, newTestEngine(t, 0))
	defer tr.Close()

	// 8 quarter notes at 120 BPM plus the release tail
	want := uint64(4*testRate + testRate/4)
	if got := tr.Info().ApproxTotalSamples; got != want {
		t.Fatalf("expected %d total samples, got %d", want, got)
	}

	frames, peak := drain(t, tr)
	if frames != want {
		t.Errorf("expected %d frames rendered, got %d", want, frames)
	}
	if peak == 0 {
		t.Error("expected audible output")
	}
	if tr.Info().CurrentSample != want {
		t.Errorf("expected current sample at end, got %d", tr.Info().CurrentSample)
	}
}

func TestMasterVolumeZeroIsSilent(t *testing.T) {
	eng := newTestEngine(t, Reverb)
	eng.SetMasterVolume(0)
	tr := openScale(t, eng)
	defer tr.Close()

	if _, peak := drain(t, tr); peak != 0 {
		t.Errorf("expected silence at master volume 0, peak %d", peak)
	}
}

func TestSetMasterVolumeClamps(t *testing.T) {
	eng := newTestEngine(t, 0)
	if eng.MasterVolume() != DefaultMasterVolume {
		t.Errorf("expected default %d, got %d", DefaultMasterVolume, eng.MasterVolume())
	}
	eng.SetMasterVolume(200)
	if eng.MasterVolume() != 127 {
		t.Errorf("expected clamp to 127, got %d", eng.MasterVolume())
	}
}

func TestLyricsFollowPlayback(t *testing.T) {
	tr := openScale(t, newTestEngine(t, 0))
	defer tr.Close()

	if _, ok := tr.Lyric(); ok {
		t.Fatal("expected no lyric before playback")
	}

	// Just past the third note
	buf := make([]byte, (testRate+testRate/10)*4)
	if _, err := tr.Output(buf); err != nil {
		t.Fatal(err)
	}
	l, ok := tr.Lyric()
	if !ok {
		t.Fatal("expected a lyric")
	}
	if l.Text != "Mi " || l.Seq != 3 {
		t.Errorf("expected third lyric \"Mi \", got %q seq %d", l.Text, l.Seq)
	}
}

func TestTextAsLyric(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaText("/hello"))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(480, midi.NoteOff(0, 60))
	data := buildSMF(t, tr)

	eng := newTestEngine(t, 0)
	plain, _ := eng.OpenBuffer(data)
	drain(t, plain)
	if _, ok := plain.Lyric(); ok {
		t.Error("text event should not be a lyric by default")
	}

	withText, _ := eng.OpenBuffer(data)
	if err := withText.SetOption(TextAsLyric, true); err != nil {
		t.Fatal(err)
	}
	drain(t, withText)
	l, ok := withText.Lyric()
	if !ok || l.Text != "hello" {
		t.Errorf("expected lyric \"hello\", got %q (%v)", l.Text, ok)
	}
}

func TestFastSeek(t *testing.T) {
	tr := openScale(t, newTestEngine(t, 0))
	defer tr.Close()
	total := tr.Info().ApproxTotalSamples

	target := total + 5000
	if err := tr.FastSeek(&target); err != nil {
		t.Fatal(err)
	}
	if target != total {
		t.Errorf("expected target clamped to %d, got %d", total, target)
	}
	if n, _ := tr.Output(make([]byte, 4096)); n != 0 {
		t.Errorf("expected end of track after seeking past it, got %d bytes", n)
	}

	target = 2 * testRate
	if err := tr.FastSeek(&target); err != nil {
		t.Fatal(err)
	}
	if got := tr.Info().CurrentSample; got != 2*testRate {
		t.Errorf("expected position %d after backward seek, got %d", 2*testRate, got)
	}
	// lyrics before the target are replayed
	if l, _ := tr.Lyric(); l.Text != "Fa " {
		t.Errorf("expected lyric \"Fa \" at 2s, got %q", l.Text)
	}
}

func TestSongSeekMarkers(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, smf.MetaMarker("verse"))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(1920, midi.NoteOff(0, 60))
	tr.Add(0, smf.MetaMarker("chorus"))
	tr.Add(0, midi.NoteOn(0, 64, 100))
	tr.Add(1920, midi.NoteOff(0, 64))
	tr.Add(0, smf.MetaMarker("outro"))
	tr.Add(0, midi.NoteOn(0, 67, 100))
	tr.Add(480, midi.NoteOff(0, 67))

	eng := newTestEngine(t, 0)
	track, err := eng.OpenBuffer(buildSMF(t, tr))
	if err != nil {
		t.Fatal(err)
	}
	defer track.Close()

	if got := track.Info().Sections; got != 3 {
		t.Fatalf("expected 3 sections, got %d", got)
	}

	steps := []struct {
		dir  int
		want uint64
		err  error
	}{
		{1, 2 * testRate, nil},
		{1, 4 * testRate, nil},
		{1, 4 * testRate, ErrNoSection},
		{0, 4 * testRate, nil},
		{-1, 2 * testRate, nil},
		{-1, 0, nil},
		{-1, 0, nil},
	}
	for i, s := range steps {
		err := track.SongSeek(s.dir)
		if !errors.Is(err, s.err) {
			t.Fatalf("step %d: expected error %v, got %v", i, s.err, err)
		}
		if got := track.Info().CurrentSample; got != s.want {
			t.Errorf("step %d: expected position %d, got %d", i, s.want, got)
		}
	}
}

func TestFormat2PlaysTracksInSequence(t *testing.T) {
	song := func(key uint8) smf.Track {
		var tr smf.Track
		tr.Add(0, smf.MetaTempo(120))
		tr.Add(0, midi.NoteOn(0, key, 100))
		tr.Add(960, midi.NoteOff(0, key))
		return tr
	}
	data := buildSMF(t, song(60), song(72))
	data[9] = 2 // header format field

	eng := newTestEngine(t, 0)
	tr, err := eng.OpenBuffer(data)
	if err != nil {
		t.Fatal(err)
	}
	info := tr.Info()
	if info.Format != 2 || info.Tracks != 2 || info.Sections != 2 {
		t.Fatalf("unexpected info %+v", info)
	}
	if want := uint64(2*testRate + testRate/4); info.ApproxTotalSamples != want {
		t.Errorf("expected %d total samples, got %d", want, info.ApproxTotalSamples)
	}

	if err := tr.SongSeek(1); err != nil {
		t.Fatal(err)
	}
	if got := tr.Info().CurrentSample; got != testRate {
		t.Errorf("expected second song at %d, got %d", testRate, got)
	}
}

func TestStripSilence(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(960, midi.NoteOn(0, 60, 100))
	tr.Add(480, midi.NoteOff(0, 60))
	data := buildSMF(t, tr)

	full, _ := newTestEngine(t, 0).OpenBuffer(data)
	stripped, _ := newTestEngine(t, StripSilence).OpenBuffer(data)

	if got := full.Info().ApproxTotalSamples; got != uint64(testRate*3/2+testRate/4) {
		t.Errorf("unexpected full length %d", got)
	}
	if got := stripped.Info().ApproxTotalSamples; got != uint64(testRate/2+testRate/4) {
		t.Errorf("unexpected stripped length %d", got)
	}
}

func TestRoundTempo(t *testing.T) {
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(119.6))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(1920, midi.NoteOff(0, 60))
	data := buildSMF(t, tr)

	exact, _ := newTestEngine(t, 0).OpenBuffer(data)
	rounded, _ := newTestEngine(t, RoundTempo).OpenBuffer(data)

	if got := rounded.Info().ApproxTotalSamples; got != uint64(2*testRate+testRate/4) {
		t.Errorf("expected 120 BPM timing, got %d samples", got)
	}
	if exact.Info().ApproxTotalSamples <= rounded.Info().ApproxTotalSamples {
		t.Error("expected the unrounded tempo to run slightly longer")
	}
}

func TestMidiOutputPlayedSoFar(t *testing.T) {
	for _, type0 := range []bool{false, true} {
		tr := openScale(t, newTestEngine(t, 0))
		if err := tr.SetOption(SaveAsType0, type0); err != nil {
			t.Fatal(err)
		}

		// four notes in
		if _, err := tr.Output(make([]byte, 2*testRate*4)); err != nil {
			t.Fatal(err)
		}
		data, err := tr.MidiOutput()
		if err != nil {
			t.Fatalf("MidiOutput failed: %v", err)
		}

		s, err := smf.ReadFrom(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("exported midi does not parse: %v", err)
		}
		wantFormat := uint16(1)
		if type0 {
			wantFormat = 0
		}
		if s.Format() != wantFormat {
			t.Errorf("type0=%v: expected format %d, got %d", type0, wantFormat, s.Format())
		}

		notes := 0
		var ch, key, vel uint8
		for _, track := range s.Tracks {
			for _, ev := range track {
				if midi.Message(ev.Message).GetNoteStart(&ch, &key, &vel) {
					notes++
				}
			}
		}
		if notes != 4 {
			t.Errorf("type0=%v: expected 4 notes played so far, got %d", type0, notes)
		}
		tr.Close()
	}
}

func TestSetOption(t *testing.T) {
	tr := openScale(t, newTestEngine(t, LogVolume))
	defer tr.Close()

	if err := tr.SetOption(Reverb, true); err != nil {
		t.Fatal(err)
	}
	if err := tr.SetOption(LogVolume, false); err != nil {
		t.Fatal(err)
	}
	if got := tr.Info().Options; got != Reverb {
		t.Errorf("expected only reverb set, got %s", got)
	}
	if err := tr.SetOption(0, true); err == nil {
		t.Error("expected error for empty option")
	}
	if err := tr.SetOption(1<<12, true); err == nil {
		t.Error("expected error for unknown option")
	}
}

func TestClosedTrack(t *testing.T) {
	tr := openScale(t, newTestEngine(t, 0))
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on second close, got %v", err)
	}
	if _, err := tr.Output(make([]byte, 64)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Output, got %v", err)
	}
	if _, err := tr.MidiOutput(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from MidiOutput, got %v", err)
	}
}

func TestOpenInvalidData(t *testing.T) {
	eng := newTestEngine(t, 0)
	if _, err := eng.OpenBuffer([]byte("not a midi file")); err == nil {
		t.Error("expected error for garbage input")
	}
	if _, err := eng.Open("/nonexistent/file.mid"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUnwrapRMID(t *testing.T) {
	payload, err := TestScale(0, 0)
	if err != nil {
		t.Fatal(err)
	}

	var riff bytes.Buffer
	riff.WriteString("RIFF")
	binary.Write(&riff, binary.LittleEndian, uint32(4+8+len(payload)))
	riff.WriteString("RMID")
	riff.WriteString("data")
	binary.Write(&riff, binary.LittleEndian, uint32(len(payload)))
	riff.Write(payload)

	if got := unwrapRMID(riff.Bytes()); !bytes.Equal(got, payload) {
		t.Error("expected the SMF payload back")
	}
	if got := unwrapRMID(payload); !bytes.Equal(got, payload) {
		t.Error("plain SMF should pass through unchanged")
	}

	if _, err := newTestEngine(t, 0).OpenBuffer(riff.Bytes()); err != nil {
		t.Errorf("failed to open RMID: %v", err)
	}
}

func TestOptionString(t *testing.T) {
	if got := (LogVolume | Reverb).String(); got != "logvolume|reverb" {
		t.Errorf("unexpected %q", got)
	}
	if got := Option(0).String(); got != "none" {
		t.Errorf("unexpected %q", got)
	}
}
