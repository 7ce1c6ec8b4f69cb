// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Track
	trackID    string
	serverName string
	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	// Playback
	state    string
	position float64
	duration float64
	volume   int

	// Buffer
	bufferHealth  float64
	bufferSeconds float64

	// Stats
	framesPlayed int64
	underruns    int64

	// Controls
	controls *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderTrack()
	s += m.renderTransport()
	s += m.renderBuffer()
	s += m.renderHelp()

	return s
}

// renderHeader renders the title bar
func (m Model) renderHeader() string {
	server := m.serverName
	if server == "" {
		server = "(no server)"
	}

	return fmt.Sprintf(`┌─ Cadenza Player ─────────────────────────────────────┐
│ Server: %-45s │
├──────────────────────────────────────────────────────┤
`, truncate(server, 45))
}

// renderTrack renders stream format details
func (m Model) renderTrack() string {
	if m.codec == "" {
		return "│ No track loaded                                      │\n"
	}

	s := fmt.Sprintf("│ Track:  %-45s │\n", truncate(m.trackID, 45))
	s += fmt.Sprintf("│ Format: %s %dHz %s %d-bit%-18s │\n",
		m.codec, m.sampleRate, channelName(m.channels), m.bitDepth, "")

	return s
}

// renderTransport renders state, position, and volume
func (m Model) renderTransport() string {
	progress := 0
	if m.duration > 0 {
		progress = int(m.position / m.duration * 100)
	}

	positionBar := renderBar(progress, 100, 24)
	volumeBar := renderBar(m.volume, 100, 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ State:  %-45s │\n"+
		"│ [%s] %s / %s%-9s │\n"+
		"│ Volume: [%s] %d%%%-22s │\n",
		m.state,
		positionBar, formatTime(m.position), formatTime(m.duration), "",
		volumeBar, m.volume, "")
}

// renderBuffer renders buffer health and playback stats
func (m Model) renderBuffer() string {
	healthBar := renderBar(int(m.bufferHealth*100), 100, 10)

	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Buffer: [%s] %.1fs%-26s │
│ Stats:  Frames: %d  Underruns: %d%-14s │
│                                                      │
`, healthBar, m.bufferSeconds, "", m.framesPlayed, m.underruns, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ space:Play/Pause  ←/→:Seek  ↑/↓:Volume  q:Quit      │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case " ":
		if m.controls != nil {
			select {
			case m.controls.Toggle <- ToggleMsg{}:
			default:
			}
		}
	case "left":
		m.sendSeek(-10)
	case "right":
		m.sendSeek(10)
	case "up":
		m.volume += 5
		if m.volume > 100 {
			m.volume = 100
		}
		m.sendVolume()
	case "down":
		m.volume -= 5
		if m.volume < 0 {
			m.volume = 0
		}
		m.sendVolume()
	}

	return m, nil
}

func (m Model) sendSeek(delta float64) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Seek <- SeekMsg{Delta: delta}:
	default:
	}
}

func (m Model) sendVolume() {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Volume <- VolumeMsg{Percent: m.volume}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.TrackID != "" {
		m.trackID = msg.TrackID
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Codec != "" {
		m.codec = msg.Codec
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.bitDepth = msg.BitDepth
		m.duration = msg.Duration
	}
	if msg.State != "" {
		m.state = msg.State
	}
	m.position = msg.Position
	m.bufferHealth = msg.BufferHealth
	m.bufferSeconds = msg.BufferSeconds
	m.framesPlayed = msg.FramesPlayed
	m.underruns = msg.Underruns
}

// StatusMsg updates TUI state
type StatusMsg struct {
	TrackID       string
	ServerName    string
	Codec         string
	SampleRate    int
	Channels      int
	BitDepth      int
	Duration      float64
	State         string
	Position      float64
	BufferHealth  float64
	BufferSeconds float64
	FramesPlayed  int64
	Underruns     int64
}

// Utility functions
func renderBar(value, max, width int) string {
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func formatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}
