// ABOUTME: Tests for the playback engine
// ABOUTME: Covers the transport state machine, water-mark hysteresis, and position accounting
package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Cadenza-Audio/cadenza-go/internal/buffer"
	"github.com/Cadenza-Audio/cadenza-go/internal/output"
)

// fakeSink captures the render function so tests can drive ticks manually.
type fakeSink struct {
	render   output.RenderFunc
	channels int
	paused   bool
	closed   bool
	startErr error
}

func (f *fakeSink) Start(render output.RenderFunc) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.render = render
	return nil
}

func (f *fakeSink) Pause() error  { f.paused = true; return nil }
func (f *fakeSink) Resume() error { f.paused = false; return nil }
func (f *fakeSink) Close() error  { f.closed = true; return nil }
func (f *fakeSink) Channels() int { return f.channels }

// newTestEngine builds an engine over a 1kHz stereo stream with second-scale
// water marks so test sample counts stay small.
func newTestEngine(t *testing.T, cfg Config) (*Engine, *buffer.Ring, *fakeSink) {
	t.Helper()

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}

	ring := buffer.New(cfg.SampleRate * cfg.Channels * 60)
	sink := &fakeSink{channels: cfg.Channels}

	e, err := New(cfg, ring, sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, ring, sink
}

// fill writes seconds worth of non-zero samples into the ring.
func fill(t *testing.T, ring *buffer.Ring, rate, channels int, seconds float64) {
	t.Helper()
	n := int(seconds*float64(rate)) * channels
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.25
	}
	if _, err := ring.Write(samples); err != nil {
		t.Fatalf("fill: %v", err)
	}
}

func tick(e *Engine, sink *fakeSink, frames int) []float32 {
	dst := make([]float32, frames*sink.channels)
	sink.render(dst, frames)
	return dst
}

func TestNewValidatesWaterMarks(t *testing.T) {
	ring := buffer.New(16)
	sink := &fakeSink{channels: 2}

	_, err := New(Config{SampleRate: 1000, Channels: 2, LowWaterSeconds: 3, HighWaterSeconds: 2}, ring, sink)
	if err == nil {
		t.Error("expected error for inverted water marks")
	}
}

func TestStartGateInsufficientBuffer(t *testing.T) {
	var states []State
	e, ring, _ := newTestEngine(t, Config{
		PreRollSeconds: 2,
		OnStateChange:  func(s State) { states = append(states, s) },
	})

	fill(t, ring, 1000, 2, 1) // below the 2s pre-roll

	err := e.Start()
	if !errors.Is(err, ErrInsufficientBuffer) {
		t.Fatalf("expected ErrInsufficientBuffer, got %v", err)
	}
	if e.State() != StateError {
		t.Errorf("expected error state, got %s", e.State())
	}
	if len(states) == 0 || states[len(states)-1] != StateError {
		t.Errorf("expected error state notification, got %v", states)
	}
}

func TestStartAfterErrorRecovers(t *testing.T) {
	e, ring, _ := newTestEngine(t, Config{PreRollSeconds: 2})

	if err := e.Start(); !errors.Is(err, ErrInsufficientBuffer) {
		t.Fatalf("expected gate failure, got %v", err)
	}

	fill(t, ring, 1000, 2, 3)
	if err := e.Start(); err != nil {
		t.Fatalf("expected recovery after buffering, got %v", err)
	}
	if e.State() != StatePlaying {
		t.Errorf("expected playing, got %s", e.State())
	}
}

func TestStartAcceptsEndOfStreamTail(t *testing.T) {
	e, ring, sink := newTestEngine(t, Config{PreRollSeconds: 2})

	// The feed has delivered everything; only 0.5s remains. The gate must
	// accept the tail instead of demanding a pre-roll that can never arrive.
	fill(t, ring, 1000, 2, 0.5)
	e.SetEndOfStream()

	if err := e.Start(); err != nil {
		t.Fatalf("expected start with end-of-stream tail, got %v", err)
	}
	if e.State() != StatePlaying {
		t.Fatalf("expected playing, got %s", e.State())
	}

	// The tail drains to a natural stop.
	tick(e, sink, 500)
	if e.State() != StateStopped {
		t.Errorf("expected stopped after drain, got %s", e.State())
	}
}

func TestSeekOffsetClearsEndOfStream(t *testing.T) {
	e, ring, sink := newTestEngine(t, Config{PreRollSeconds: 1})
	fill(t, ring, 1000, 2, 3)

	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	e.SetEndOfStream()
	e.SetSeekOffset(10)

	// Drain the buffer dry: without the reset a stale end-of-stream flag
	// would stop the engine while the post-seek feed is still refilling.
	tick(e, sink, 3000)
	tick(e, sink, 100)
	if e.State() == StateStopped {
		t.Error("stale end-of-stream flag stopped the engine after seek")
	}
}

func TestStartEndOfStreamEmptyBufferStillGated(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{PreRollSeconds: 2})

	e.SetEndOfStream()
	if err := e.Start(); !errors.Is(err, ErrInsufficientBuffer) {
		t.Fatalf("expected gate failure with empty buffer, got %v", err)
	}
}

func TestOutputFailureIsFatal(t *testing.T) {
	e, ring, sink := newTestEngine(t, Config{PreRollSeconds: 1})
	sink.startErr = fmt.Errorf("no device")
	fill(t, ring, 1000, 2, 2)

	if err := e.Start(); err == nil {
		t.Fatal("expected output failure")
	}
	if e.State() != StateError {
		t.Errorf("expected error state, got %s", e.State())
	}
}

func TestTransportTransitions(t *testing.T) {
	e, ring, sink := newTestEngine(t, Config{PreRollSeconds: 1})
	fill(t, ring, 1000, 2, 5)

	if e.State() != StateIdle {
		t.Fatalf("expected idle, got %s", e.State())
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	if !e.IsPlaying() {
		t.Error("expected playing")
	}

	if err := e.Pause(); err != nil {
		t.Fatal(err)
	}
	if e.State() != StatePaused || !sink.paused {
		t.Error("expected paused engine and detached sink")
	}
	if err := e.Pause(); err == nil {
		t.Error("expected error pausing while paused")
	}

	if err := e.Resume(); err != nil {
		t.Fatal(err)
	}
	if e.State() != StatePlaying || sink.paused {
		t.Error("expected playing engine and attached sink")
	}

	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}
	if e.State() != StateStopped {
		t.Errorf("expected stopped, got %s", e.State())
	}
	// Stop is idempotent.
	if err := e.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestResumeFromIdleFails(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})
	if err := e.Resume(); err == nil {
		t.Error("expected error resuming from idle")
	}
}

func TestRenderAdvancesPosition(t *testing.T) {
	e, ring, sink := newTestEngine(t, Config{PreRollSeconds: 1, LowWaterSeconds: 1, HighWaterSeconds: 2})
	fill(t, ring, 1000, 2, 10)

	if err := e.Start(); err != nil {
		t.Fatal(err)
	}

	out := tick(e, sink, 500) // 0.5s of frames
	if out[0] == 0 {
		t.Error("expected real samples, got silence")
	}

	if got := e.Position(); got != 0.5 {
		t.Errorf("Position = %v, want 0.5", got)
	}

	stats := e.Stats()
	if stats.FramesPlayed != 500 {
		t.Errorf("FramesPlayed = %d, want 500", stats.FramesPlayed)
	}
	if stats.Underruns != 0 {
		t.Errorf("Underruns = %d, want 0", stats.Underruns)
	}
}

func TestPauseFreezesPosition(t *testing.T) {
	e, ring, sink := newTestEngine(t, Config{PreRollSeconds: 1, LowWaterSeconds: 1, HighWaterSeconds: 2})
	fill(t, ring, 1000, 2, 10)

	e.Start()
	tick(e, sink, 250)

	e.Pause()
	if got := e.Position(); got != 0.25 {
		t.Errorf("paused Position = %v, want 0.25", got)
	}

	// Ticks while paused render silence and do not advance position.
	out := tick(e, sink, 250)
	for _, v := range out {
		if v != 0 {
			t.Fatal("expected silence while paused")
		}
	}
	if got := e.Position(); got != 0.25 {
		t.Errorf("Position after paused tick = %v, want 0.25", got)
	}

	e.Resume()
	tick(e, sink, 250)
	if got := e.Position(); got != 0.5 {
		t.Errorf("Position after resume = %v, want 0.5", got)
	}
}

func TestSeekOffsetAnchorsPosition(t *testing.T) {
	e, ring, sink := newTestEngine(t, Config{PreRollSeconds: 1, LowWaterSeconds: 1, HighWaterSeconds: 2})
	fill(t, ring, 1000, 2, 10)

	e.SetSeekOffset(42.5)
	e.Start()
	tick(e, sink, 500)

	if got := e.Position(); got != 43.0 {
		t.Errorf("Position = %v, want 43.0", got)
	}
}

func TestWaterMarkHysteresis(t *testing.T) {
	var underruns uint64
	e, ring, sink := newTestEngine(t, Config{
		PreRollSeconds:   1,
		LowWaterSeconds:  8,
		HighWaterSeconds: 12,
		OnUnderrun:       func(total uint64) { underruns = total },
	})

	fill(t, ring, 1000, 2, 7) // below the 8s low water mark
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}

	// First tick sees 7s buffered: enter buffer-pause, emit silence.
	out := tick(e, sink, 100)
	for _, v := range out {
		if v != 0 {
			t.Fatal("expected silence when below low water mark")
		}
	}
	if got := e.Stats().FramesPlayed; got != 0 {
		t.Errorf("FramesPlayed = %d, want 0 during buffer pause", got)
	}

	// Anywhere in [8s, 12s) must stay paused: no oscillation in the band.
	for _, seconds := range []float64{1.5, 2, 1} { // 8.5s, 10.5s, 11.5s buffered
		fill(t, ring, 1000, 2, seconds)
		out = tick(e, sink, 100)
		for _, v := range out {
			if v != 0 {
				t.Fatalf("expected silence in hysteresis band (buffered %v samples)", ring.Available())
			}
		}
	}

	// Crossing the high water mark resumes reads the same tick.
	fill(t, ring, 1000, 2, 1) // 12.5s buffered
	out = tick(e, sink, 100)
	if out[0] == 0 {
		t.Error("expected real samples after crossing high water mark")
	}
	if got := e.Stats().FramesPlayed; got != 100 {
		t.Errorf("FramesPlayed = %d, want 100", got)
	}
	if underruns != 0 {
		t.Errorf("expected no underruns, got %d", underruns)
	}
}

func TestUnderrunCountsAndFillsSilence(t *testing.T) {
	var total uint64
	e, ring, sink := newTestEngine(t, Config{
		PreRollSeconds:   0.01,
		LowWaterSeconds:  0.001,
		HighWaterSeconds: 0.002,
		OnUnderrun:       func(n uint64) { total = n },
	})

	fill(t, ring, 1000, 2, 0.05) // 50 frames
	e.Start()

	out := tick(e, sink, 100) // more than available
	if total != 1 {
		t.Errorf("underrun callback total = %d, want 1", total)
	}
	if got := e.Stats().Underruns; got != 1 {
		t.Errorf("Underruns = %d, want 1", got)
	}
	// Real frames first, then silence fill.
	if out[0] == 0 {
		t.Error("expected real data at head of tick")
	}
	for _, v := range out[50*2:] {
		if v != 0 {
			t.Fatal("expected silence fill for the shortfall")
		}
	}
	if got := e.Stats().FramesPlayed; got != 50 {
		t.Errorf("FramesPlayed = %d, want 50 (silence does not advance)", got)
	}
}

func TestEndOfStreamDrainsToStop(t *testing.T) {
	var states []State
	e, ring, sink := newTestEngine(t, Config{
		PreRollSeconds:   0.01,
		LowWaterSeconds:  5,
		HighWaterSeconds: 10,
		OnStateChange:    func(s State) { states = append(states, s) },
	})

	fill(t, ring, 1000, 2, 0.1) // 100 frames, far below low water
	e.Start()
	e.SetEndOfStream()

	// End of stream bypasses the low water gate and drains the tail.
	out := tick(e, sink, 100)
	if out[0] == 0 {
		t.Error("expected tail samples to play out")
	}
	if e.State() != StateStopped {
		t.Errorf("expected stopped after drain, got %s", e.State())
	}
	if states[len(states)-1] != StateStopped {
		t.Errorf("expected stopped notification, got %v", states)
	}
	// The tail shortfall is not an underrun.
	if got := e.Stats().Underruns; got != 0 {
		t.Errorf("Underruns = %d, want 0 at end of stream", got)
	}
}

func TestVolumeClampAndGain(t *testing.T) {
	e, ring, sink := newTestEngine(t, Config{PreRollSeconds: 0.01, LowWaterSeconds: 0.01, HighWaterSeconds: 0.02})

	e.SetVolume(2.5)
	if got := e.Volume(); got != 1.0 {
		t.Errorf("Volume = %v, want clamp to 1.0", got)
	}
	e.SetVolume(-1)
	if got := e.Volume(); got != 0.0 {
		t.Errorf("Volume = %v, want clamp to 0.0", got)
	}

	e.SetVolume(0.5)
	fill(t, ring, 1000, 2, 1)
	e.Start()
	out := tick(e, sink, 10)
	if out[0] != 0.25*0.5 {
		t.Errorf("expected gain-scaled sample 0.125, got %v", out[0])
	}
}

func TestMonoBroadcastsToAllChannels(t *testing.T) {
	ring := buffer.New(10000)
	sink := &fakeSink{channels: 2} // mono source, stereo device
	e, err := New(Config{
		SampleRate: 1000, Channels: 1,
		PreRollSeconds: 0.01, LowWaterSeconds: 0.01, HighWaterSeconds: 0.02,
	}, ring, sink)
	if err != nil {
		t.Fatal(err)
	}

	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = float32(i+1) / 1000
	}
	ring.Write(samples)

	e.Start()
	out := tick(e, sink, 10)
	for f := 0; f < 10; f++ {
		if out[f*2] != out[f*2+1] {
			t.Errorf("frame %d: channels differ (%v vs %v)", f, out[f*2], out[f*2+1])
		}
		if out[f*2] == 0 {
			t.Errorf("frame %d: expected real sample", f)
		}
	}
}

func TestBufferStatus(t *testing.T) {
	e, ring, _ := newTestEngine(t, Config{})
	fill(t, ring, 1000, 2, 15) // quarter of the 60s ring

	status := e.BufferStatus()
	if status.Size != 15*1000*2 {
		t.Errorf("Size = %d, want %d", status.Size, 15*1000*2)
	}
	if status.MaxSize != ring.Capacity() {
		t.Errorf("MaxSize = %d, want %d", status.MaxSize, ring.Capacity())
	}
	if status.Health != 0.25 {
		t.Errorf("Health = %v, want 0.25", status.Health)
	}
}

func TestCloseReleasesSink(t *testing.T) {
	e, ring, sink := newTestEngine(t, Config{PreRollSeconds: 0.01})
	fill(t, ring, 1000, 2, 1)
	e.Start()

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if !sink.closed {
		t.Error("expected sink to be closed")
	}
	if e.State() != StateStopped {
		t.Errorf("expected stopped, got %s", e.State())
	}
}
