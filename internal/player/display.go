// ABOUTME: Status rendering for the control loop
// ABOUTME: Status line model, the Display interface and the single-line terminal display
package player

import (
	"fmt"
	"io"
	"sync"

	"github.com/Sendspin/midiplay/pkg/synth"
)

const spinner = `|/-\`

// KeyHelp lists the playback keys
var KeyHelp = []string{
	"+  Increase volume        -  Decrease volume",
	"l  Log volume             r  Reverb",
	"e  Enhanced resampling    a  Text as lyric",
	"k  Karaoke lyrics         p  Pause / resume",
	",  Back one second        .  Forward one second",
	"<  Previous section       >  Next section",
	"/  Restart section        m  Save played events as .mid",
	"n  Next file              q  Quit",
}

// Status is one status line worth of playback state
type Status struct {
	Lyrics  string
	Modes   string
	Volume  uint8
	Current uint64
	Total   uint64
	Rate    int
	Paused  bool
	Spinner int
}

// Percent is the share of the track already played
func (st Status) Percent() uint64 {
	if st.Total == 0 {
		return 0
	}
	return st.Current * 100 / st.Total
}

// Elapsed splits the current position into minutes and seconds
func (st Status) Elapsed() (mins, secs uint64) {
	return splitSamples(st.Current, st.Rate)
}

// Mark is the spinner glyph, or P while paused
func (st Status) Mark() byte {
	if st.Paused {
		return 'P'
	}
	return spinner[st.Spinner%len(spinner)]
}

// Line renders the status without a line terminator
func (st Status) Line() string {
	mins, secs := st.Elapsed()
	return fmt.Sprintf("%s [%s] [%3d] [%2dm %2ds Processed] [%2d%%] %c  ",
		st.Lyrics, st.Modes, st.Volume, mins, secs, st.Percent(), st.Mark())
}

func splitSamples(samples uint64, rate int) (mins, secs uint64) {
	if rate <= 0 {
		return 0, 0
	}
	r := uint64(rate)
	return samples / (r * 60), (samples % (r * 60)) / r
}

// Display shows session progress to the user
type Display interface {
	TrackStarted(name string, info synth.Info, rate int)
	TrackSkipped(name string, err error)
	Status(st Status)
	Message(msg string)
	TrackEnded()
}

// LineDisplay rewrites a single status line in place on a terminal stream
type LineDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineDisplay creates a display writing to w (normally stderr)
func NewLineDisplay(w io.Writer) *LineDisplay {
	return &LineDisplay{w: w}
}

func (d *LineDisplay) TrackStarted(name string, info synth.Info, rate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mins, secs := splitSamples(info.ApproxTotalSamples, rate)
	fmt.Fprintf(d.w, "\rPlaying %s \r\n[Approx %2dm %2ds Total]\r\n", name, mins, secs)
}

func (d *LineDisplay) TrackSkipped(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "\rPlaying %s  Skipping: %v\r\n", name, err)
}

func (d *LineDisplay) Status(st Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "%s\r", st.Line())
}

func (d *LineDisplay) Message(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "\r\n%s\r\n", msg)
}

func (d *LineDisplay) TrackEnded() {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.w, "\r\n")
}
