// ABOUTME: TUI initialization and control
// ABOUTME: Runs the bubbletea program and adapts it to the session's display and key interfaces
package ui

import (
	"github.com/Sendspin/midiplay/internal/player"
	"github.com/Sendspin/midiplay/pkg/synth"
	tea "github.com/charmbracelet/bubbletea"
)

// keyBuffer bounds keys typed faster than the session polls
const keyBuffer = 32

// TUI is a full-screen display that also collects keypresses
type TUI struct {
	program *tea.Program
	keys    chan byte
}

var (
	_ player.Display   = (*TUI)(nil)
	_ player.KeySource = (*TUI)(nil)
)

// New creates the TUI; call Run to start drawing
func New(opts ...tea.ProgramOption) *TUI {
	keys := make(chan byte, keyBuffer)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(NewModel(keys), opts...),
		keys:    keys,
	}
}

// Run blocks until Done is called or the program is interrupted
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Done ends the program once the session has finished
func (t *TUI) Done() {
	t.program.Send(DoneMsg{})
}

// PollKey returns a key typed into the TUI, if any
func (t *TUI) PollKey() (byte, bool) {
	select {
	case k := <-t.keys:
		return k, true
	default:
		return 0, false
	}
}

func (t *TUI) TrackStarted(name string, info synth.Info, rate int) {
	t.program.Send(TrackMsg{Name: name, Total: info.ApproxTotalSamples, Rate: rate})
}

func (t *TUI) TrackSkipped(name string, err error) {
	t.program.Send(SkipMsg{Name: name, Err: err})
}

func (t *TUI) Status(st player.Status) {
	t.program.Send(StatusMsg(st))
}

func (t *TUI) Message(msg string) {
	t.program.Send(NoticeMsg(msg))
}

func (t *TUI) TrackEnded() {
	t.program.Send(EndMsg{})
}
