// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and control channel emission
package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // Controls is optional for testing

	if model.volume != 100 {
		t.Errorf("expected default volume 100, got %d", model.volume)
	}

	if model.state != "idle" {
		t.Errorf("expected initial state idle, got %q", model.state)
	}
}

func TestStatusMsgStreamInfo(t *testing.T) {
	model := NewModel(nil)

	msg := StatusMsg{
		TrackID:    "track-42",
		ServerName: "den-server",
		Codec:      "flac",
		SampleRate: 48000,
		Channels:   2,
		BitDepth:   24,
		Duration:   148.57,
	}

	model.applyStatus(msg)

	if model.trackID != "track-42" {
		t.Errorf("expected trackID 'track-42', got %q", model.trackID)
	}

	if model.codec != "flac" {
		t.Errorf("expected codec 'flac', got %q", model.codec)
	}

	if model.sampleRate != 48000 {
		t.Errorf("expected sampleRate 48000, got %d", model.sampleRate)
	}

	if model.duration != 148.57 {
		t.Errorf("expected duration 148.57, got %v", model.duration)
	}
}

func TestStatusMsgPlayback(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		State:         "playing",
		Position:      42.5,
		BufferHealth:  0.8,
		BufferSeconds: 24.0,
		FramesPlayed:  1874250,
		Underruns:     2,
	})

	if model.state != "playing" {
		t.Errorf("expected state 'playing', got %q", model.state)
	}

	if model.position != 42.5 {
		t.Errorf("expected position 42.5, got %v", model.position)
	}

	if model.bufferHealth != 0.8 {
		t.Errorf("expected bufferHealth 0.8, got %v", model.bufferHealth)
	}

	if model.underruns != 2 {
		t.Errorf("expected underruns 2, got %d", model.underruns)
	}
}

func TestStatusMsgPartialUpdate(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		TrackID: "track-1",
		Codec:   "opus",
		State:   "playing",
	})

	// Position-only update must retain track details
	model.applyStatus(StatusMsg{
		State:    "playing",
		Position: 10.0,
	})

	if model.codec != "opus" {
		t.Error("previous codec value was lost")
	}

	if model.trackID != "track-1" {
		t.Error("previous trackID value was lost")
	}

	if model.position != 10.0 {
		t.Error("new position not applied")
	}
}

func TestVolumeKeys(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyDown})
	m := updated.(Model)

	if m.volume != 95 {
		t.Errorf("expected volume 95 after down key, got %d", m.volume)
	}

	select {
	case msg := <-controls.Volume:
		if msg.Percent != 95 {
			t.Errorf("expected volume message 95, got %d", msg.Percent)
		}
	default:
		t.Error("expected a volume message on the control channel")
	}
}

func TestVolumeClamping(t *testing.T) {
	model := NewModel(nil)

	// Up from 100 stays at 100
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyUp})
	m := updated.(Model)
	if m.volume != 100 {
		t.Errorf("expected volume clamped at 100, got %d", m.volume)
	}

	// Down from 0 stays at 0
	m.volume = 0
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(Model)
	if m.volume != 0 {
		t.Errorf("expected volume clamped at 0, got %d", m.volume)
	}
}

func TestSeekKeys(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	model.Update(tea.KeyMsg{Type: tea.KeyRight})

	select {
	case msg := <-controls.Seek:
		if msg.Delta != 10 {
			t.Errorf("expected seek delta 10, got %v", msg.Delta)
		}
	default:
		t.Error("expected a seek message on the control channel")
	}

	model.Update(tea.KeyMsg{Type: tea.KeyLeft})

	select {
	case msg := <-controls.Seek:
		if msg.Delta != -10 {
			t.Errorf("expected seek delta -10, got %v", msg.Delta)
		}
	default:
		t.Error("expected a seek message on the control channel")
	}
}

func TestToggleKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	model.Update(tea.KeyMsg{Type: tea.KeySpace})

	select {
	case <-controls.Toggle:
	default:
		t.Error("expected a toggle message on the control channel")
	}
}

func TestQuitKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}

	select {
	case <-controls.Quit:
	default:
		t.Error("expected a quit message on the control channel")
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value    int
		max      int
		width    int
		expected string
	}{
		{0, 100, 4, "░░░░"},
		{50, 100, 4, "██░░"},
		{100, 100, 4, "████"},
		{150, 100, 4, "████"}, // clamped
		{-5, 100, 4, "░░░░"}, // clamped
	}

	for _, tt := range tests {
		result := renderBar(tt.value, tt.max, tt.width)
		if result != tt.expected {
			t.Errorf("renderBar(%d, %d, %d) = %q, expected %q",
				tt.value, tt.max, tt.width, result, tt.expected)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "0:00"},
		{59.9, "0:59"},
		{60, "1:00"},
		{148.57, "2:28"},
		{-3, "0:00"},
	}

	for _, tt := range tests {
		result := formatTime(tt.seconds)
		if result != tt.expected {
			t.Errorf("formatTime(%v) = %q, expected %q", tt.seconds, result, tt.expected)
		}
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestChannelNameFunction(t *testing.T) {
	if channelName(1) != "Mono" {
		t.Error("expected Mono for 1 channel")
	}
	if channelName(2) != "Stereo" {
		t.Error("expected Stereo for 2 channels")
	}
}
