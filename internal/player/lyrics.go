// ABOUTME: Karaoke lyric overlay
// ABOUTME: A left-scrolling history whose tail is shown on the status line
package player

import "github.com/Sendspin/midiplay/pkg/synth"

const (
	HistorySize = 128
	VisibleSize = 29
)

// LyricBuffer scrolls lyric text left by one cell per tick
type LyricBuffer struct {
	history [HistorySize]rune
	pending int
	lastSeq int
}

// NewLyricBuffer returns a blank buffer
func NewLyricBuffer() *LyricBuffer {
	b := &LyricBuffer{}
	b.Reset()
	return b
}

// Reset blanks the history; called at every track start
func (b *LyricBuffer) Reset() {
	for i := range b.history {
		b.history[i] = ' '
	}
	b.pending = 0
	b.lastSeq = 0
}

// Tick scrolls one cell and splices in l when it is new and karaoke is on
func (b *LyricBuffer) Tick(l synth.Lyric, ok bool, karaoke bool) {
	copy(b.history[:], b.history[1:])
	b.history[HistorySize-1] = ' '

	if ok && karaoke && l.Seq != b.lastSeq {
		b.lastSeq = l.Seq
		text := []rune(l.Text)
		if len(text) > HistorySize {
			text = text[len(text)-HistorySize:]
		}
		copy(b.history[:], b.history[len(text):])
		copy(b.history[HistorySize-len(text):], text)
		b.pending = len(text)
		return
	}
	if b.pending > 0 {
		b.pending--
	}
}

// Pending is how many cells of the last lyric are still entering the tail
func (b *LyricBuffer) Pending() int {
	return b.pending
}

// Visible returns the last VisibleSize cells of the history
func (b *LyricBuffer) Visible() string {
	return string(b.history[HistorySize-VisibleSize:])
}

// History returns the whole scroll buffer
func (b *LyricBuffer) History() string {
	return string(b.history[:])
}
