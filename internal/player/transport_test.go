// ABOUTME: Tests for transport state
// ABOUTME: Volume bounds, window normalization, chunk sizing and seek targets
package player

import (
	"math/rand"
	"testing"

	"github.com/Sendspin/midiplay/pkg/synth"
)

func TestVolumeStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tr := Transport{Volume: 100}
	for i := 0; i < 10000; i++ {
		if rng.Intn(2) == 0 {
			tr.VolumeUp()
		} else {
			tr.VolumeDown()
		}
		if tr.Volume > MaxVolume {
			t.Fatalf("volume %d out of range after %d steps", tr.Volume, i)
		}
	}
}

func TestVolumeEdges(t *testing.T) {
	tr := Transport{Volume: MaxVolume}
	if tr.VolumeUp() {
		t.Error("expected no change at max volume")
	}
	tr.Volume = 0
	if tr.VolumeDown() {
		t.Error("expected no change at zero volume")
	}
	if !tr.VolumeUp() || tr.Volume != 1 {
		t.Errorf("expected volume 1, got %d", tr.Volume)
	}
}

func TestNormalizeWindow(t *testing.T) {
	tr := Transport{PlayFrom: 10 * testRate, PlayTo: 5 * testRate}
	if !tr.NormalizeWindow() {
		t.Error("expected inverted window to be reported")
	}
	if tr.PlayTo != 0 || tr.PlayFrom != 10*testRate {
		t.Errorf("unexpected window %d..%d", tr.PlayFrom, tr.PlayTo)
	}

	tr = Transport{PlayFrom: 5, PlayTo: 10}
	if tr.NormalizeWindow() || tr.PlayTo != 10 {
		t.Error("expected valid window untouched")
	}

	tr = Transport{PlayFrom: 5}
	if tr.NormalizeWindow() {
		t.Error("expected open-ended window untouched")
	}
}

func TestChunkBytes(t *testing.T) {
	tests := []struct {
		name   string
		tr     Transport
		want   int
		wantOK bool
	}{
		{"no window", Transport{Current: 1 << 30}, 16384, true},
		{"far from end", Transport{Current: 0, PlayTo: 100000}, 16384, true},
		{"partial", Transport{Current: 99000, PlayTo: 100000}, 4000, true},
		{"at end", Transport{Current: 100000, PlayTo: 100000}, 0, false},
		{"past end", Transport{Current: 100100, PlayTo: 100000}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := tt.tr.ChunkBytes(16384, 4)
			if n != tt.want || ok != tt.wantOK {
				t.Errorf("got (%d, %v), want (%d, %v)", n, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSeekTargets(t *testing.T) {
	tr := Transport{Current: 1000, Total: 5 * testRate}
	if got := tr.SeekBackTarget(testRate); got != 0 {
		t.Errorf("expected back seek clamped to 0, got %d", got)
	}
	if got := tr.SeekForwardTarget(testRate); got != 1000+testRate {
		t.Errorf("expected forward seek to %d, got %d", 1000+testRate, got)
	}

	tr.Current = 5*testRate - 10
	if got := tr.SeekForwardTarget(testRate); got != tr.Total {
		t.Errorf("expected forward seek clamped to total, got %d", got)
	}
	if got := tr.SeekBackTarget(testRate); got != 4*testRate-10 {
		t.Errorf("expected back seek to %d, got %d", 4*testRate-10, got)
	}
}

func TestModes(t *testing.T) {
	tr := Transport{}
	if got := tr.Modes(); got != "    " {
		t.Errorf("expected blank modes, got %q", got)
	}
	tr.Options = synth.LogVolume | synth.EnhancedResampling | synth.TextAsLyric
	if got := tr.Modes(); got != "l e " {
		t.Errorf("expected %q, got %q", "l e ", got)
	}
}
