// ABOUTME: Tests for status rendering
// ABOUTME: Status line layout and the line display's framing
package player

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Sendspin/midiplay/pkg/synth"
)

func TestStatusLine(t *testing.T) {
	st := Status{
		Lyrics:  "abc",
		Modes:   "lr  ",
		Volume:  100,
		Current: 75 * testRate,
		Total:   150 * testRate,
		Rate:    testRate,
		Spinner: 1,
	}
	want := "abc [lr  ] [100] [ 1m 15s Processed] [50%] /  "
	if got := st.Line(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	st.Paused = true
	if st.Mark() != 'P' {
		t.Errorf("expected P while paused, got %c", st.Mark())
	}
}

func TestStatusZeroTotal(t *testing.T) {
	st := Status{Current: 100, Rate: testRate}
	if st.Percent() != 0 {
		t.Errorf("expected 0%% with unknown total, got %d", st.Percent())
	}
	st.Rate = 0
	if m, s := st.Elapsed(); m != 0 || s != 0 {
		t.Errorf("expected zero elapsed without a rate, got %dm %ds", m, s)
	}
}

func TestSpinnerCycles(t *testing.T) {
	seen := ""
	for i := 0; i < 5; i++ {
		seen += string(Status{Spinner: i}.Mark())
	}
	if seen != `|/-\|` {
		t.Errorf("unexpected spinner sequence %q", seen)
	}
}

func TestLineDisplay(t *testing.T) {
	var buf bytes.Buffer
	d := NewLineDisplay(&buf)

	d.TrackStarted("a.mid", synth.Info{ApproxTotalSamples: 150 * testRate}, testRate)
	if got, want := buf.String(), "\rPlaying a.mid \r\n[Approx  2m 30s Total]\r\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()
	d.TrackSkipped("b.mid", errors.New("bad header"))
	if got, want := buf.String(), "\rPlaying b.mid  Skipping: bad header\r\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()
	d.Status(Status{Rate: testRate})
	if b := buf.Bytes(); b[len(b)-1] != '\r' {
		t.Error("expected status line to end with a carriage return")
	}

	buf.Reset()
	d.Message("Writing a.mid: 10 bytes.")
	if got := buf.String(); got != "\r\nWriting a.mid: 10 bytes.\r\n" {
		t.Errorf("unexpected message framing %q", got)
	}
}
