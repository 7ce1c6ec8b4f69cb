// ABOUTME: TUI initialization and control channels
// ABOUTME: Wraps the bubbletea program for the player UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ToggleMsg requests a play/pause toggle
type ToggleMsg struct{}

// SeekMsg requests a relative seek in seconds
type SeekMsg struct {
	Delta float64
}

// VolumeMsg requests a volume change
type VolumeMsg struct {
	Percent int
}

// QuitMsg requests shutdown
type QuitMsg struct{}

// Controls holds channels for TUI-to-player communication
type Controls struct {
	Toggle chan ToggleMsg
	Seek   chan SeekMsg
	Volume chan VolumeMsg
	Quit   chan QuitMsg
}

// NewControls creates a control channel set
func NewControls() *Controls {
	return &Controls{
		Toggle: make(chan ToggleMsg, 10),
		Seek:   make(chan SeekMsg, 10),
		Volume: make(chan VolumeMsg, 10),
		Quit:   make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		state:    "idle",
		controls: controls,
	}
}

// Run starts the TUI
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
