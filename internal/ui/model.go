// ABOUTME: Bubbletea model for the playback screen
// ABOUTME: Shows the current track, lyrics, status and messages, and forwards keys
package ui

import (
	"fmt"
	"strings"

	"github.com/Sendspin/midiplay/internal/player"
	"github.com/Sendspin/midiplay/internal/version"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxMessages is how many recent messages stay on screen
const maxMessages = 5

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	lyricStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	track   string
	total   uint64
	rate    int
	status  player.Status
	playing bool

	messages []string
	keys     chan<- byte

	quitting bool
	width    int
	height   int
}

// TrackMsg announces a new track
type TrackMsg struct {
	Name  string
	Total uint64
	Rate  int
}

// SkipMsg reports a track that could not be loaded
type SkipMsg struct {
	Name string
	Err  error
}

// StatusMsg carries one status update
type StatusMsg player.Status

// NoticeMsg is a one-off line such as a save result
type NoticeMsg string

// EndMsg marks the end of the current track
type EndMsg struct{}

// DoneMsg tells the screen the session has finished
type DoneMsg struct{}

// NewModel creates a model that forwards keypresses to keys
func NewModel(keys chan<- byte) Model {
	return Model{keys: keys}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key, ok := keyByte(msg); ok {
			m.forward(key)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case TrackMsg:
		m.track = msg.Name
		m.total = msg.Total
		m.rate = msg.Rate
		m.status = player.Status{Rate: msg.Rate, Total: msg.Total}
		m.playing = true
	case SkipMsg:
		m.addMessage(fmt.Sprintf("Skipping %s: %v", msg.Name, msg.Err))
	case StatusMsg:
		m.status = player.Status(msg)
	case NoticeMsg:
		m.addMessage(string(msg))
	case EndMsg:
		m.playing = false
	case DoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// forward hands a key to the session without blocking the UI
func (m Model) forward(key byte) {
	if m.keys == nil {
		return
	}
	select {
	case m.keys <- key:
	default:
	}
}

func (m *Model) addMessage(s string) {
	m.messages = append(m.messages, s)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// keyByte maps a bubbletea key to the single byte the session understands
func keyByte(msg tea.KeyMsg) (byte, bool) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
		return 'q', true
	case tea.KeyRunes:
		if len(msg.Runes) == 1 && msg.Runes[0] < 0x80 {
			return byte(msg.Runes[0]), true
		}
	}
	return 0, false
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(version.Banner()))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Playing: "))
	if m.track == "" {
		b.WriteString(valueStyle.Render("-"))
	} else {
		b.WriteString(valueStyle.Render(m.track))
	}
	b.WriteString("\n")

	st := m.status
	emins, esecs := st.Elapsed()
	tmins, tsecs := player.Status{Current: m.total, Rate: m.rate}.Elapsed()
	b.WriteString(headerStyle.Render("Time:    "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%2dm %2ds / %2dm %2ds  [%2d%%]", emins, esecs, tmins, tsecs, st.Percent())))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Volume:  "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%3d %s", st.Volume, renderBar(int(st.Volume), player.MaxVolume, 20))))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Mixer:   "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("[%s]", st.Modes)))
	if st.Paused {
		b.WriteString("  ")
		b.WriteString(pausedStyle.Render("PAUSED"))
	} else if m.playing {
		b.WriteString(fmt.Sprintf("  %c", st.Mark()))
	}
	b.WriteString("\n\n")

	b.WriteString(lyricStyle.Render(fmt.Sprintf("> %s <", st.Lyrics)))
	b.WriteString("\n\n")

	for _, msg := range m.messages {
		b.WriteString(valueStyle.Render(msg))
		b.WriteString("\n")
	}
	if len(m.messages) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(strings.Join(player.KeyHelp, "\n")))
	b.WriteString("\n")

	return b.String()
}

func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
