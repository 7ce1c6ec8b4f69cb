// ABOUTME: Playback engine with transport state machine and buffer-health policy
// ABOUTME: Pulls samples from the ring buffer on every audio tick and tracks position
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Cadenza-Audio/cadenza-go/internal/buffer"
	"github.com/Cadenza-Audio/cadenza-go/internal/output"
)

// State is the engine's transport state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateStopped
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ErrInsufficientBuffer is returned by Start when the pre-roll gate fails.
// The engine does not retry; the feed must buffer more before Start is
// called again.
var ErrInsufficientBuffer = errors.New("engine: insufficient pre-roll buffer")

// Config holds engine configuration. Pre-roll and water marks are tuning
// knobs for expected network jitter, not invariants, so they are exposed
// here rather than hard-coded.
type Config struct {
	SampleRate int
	Channels   int

	// PreRollSeconds is the minimum buffered audio required before
	// playback starts (default 2.0).
	PreRollSeconds float64

	// LowWaterSeconds and HighWaterSeconds gate the hysteresis-based
	// buffer pause: below low the engine substitutes silence, and only at
	// or above high does it resume reading (defaults 1.0 and 3.0).
	LowWaterSeconds  float64
	HighWaterSeconds float64

	// Volume is the initial gain in [0,1] (default 1.0).
	Volume float64

	// OnStateChange fires on every transport-state transition.
	OnStateChange func(State)

	// OnUnderrun fires on each detected underrun with the running total.
	OnUnderrun func(total uint64)
}

// Stats is a snapshot of playback counters.
type Stats struct {
	IsPlaying    bool
	CurrentTime  float64
	FramesPlayed uint64
	Underruns    uint64
}

// BufferStatus describes ring buffer fill for UI buffering indicators.
type BufferStatus struct {
	Size    int
	MaxSize int
	Health  float64
}

// Engine owns the audio output graph. It is the single consumer of the ring
// buffer: the injected sink pulls render on the audio clock, and everything
// render does (buffer read, channel mapping, gain) is bounded and
// non-blocking.
type Engine struct {
	mu   sync.Mutex
	cfg  Config
	ring *buffer.Ring
	sink output.Sink

	outChannels int
	sinkStarted bool

	state        State
	bufferPaused bool
	endOfStream  bool
	framesPlayed uint64
	underruns    uint64
	seekOffset   float64
	pausedAt     float64
	volume       float32
	scratch      []float32
}

// New creates an engine reading from ring and playing through sink.
func New(cfg Config, ring *buffer.Ring, sink output.Sink) (*Engine, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("engine: invalid format %dHz/%dch", cfg.SampleRate, cfg.Channels)
	}
	if cfg.PreRollSeconds == 0 {
		cfg.PreRollSeconds = 2.0
	}
	if cfg.LowWaterSeconds == 0 {
		cfg.LowWaterSeconds = 1.0
	}
	if cfg.HighWaterSeconds == 0 {
		cfg.HighWaterSeconds = 3.0
	}
	if cfg.LowWaterSeconds >= cfg.HighWaterSeconds {
		return nil, fmt.Errorf("engine: low water mark %v must be below high water mark %v",
			cfg.LowWaterSeconds, cfg.HighWaterSeconds)
	}
	if cfg.Volume == 0 {
		cfg.Volume = 1.0
	}

	return &Engine{
		cfg:         cfg,
		ring:        ring,
		sink:        sink,
		outChannels: sink.Channels(),
		state:       StateIdle,
		volume:      clampVolume(cfg.Volume),
	}, nil
}

// Start begins playback, gated on the pre-roll threshold. A failed gate or
// output failure transitions to StateError; the caller must remediate and
// call Start again.
func (e *Engine) Start() error {
	e.mu.Lock()

	if e.state == StatePlaying {
		e.mu.Unlock()
		return nil
	}

	preRoll := int(e.cfg.PreRollSeconds*float64(e.cfg.SampleRate)) * e.cfg.Channels
	avail := e.ring.Available()
	if e.endOfStream && avail > 0 {
		// The feed has delivered the final chunk: whatever remains is the
		// entire tail, so the gate must not demand more than exists.
		preRoll = avail
	}
	if avail < preRoll {
		e.state = StateError
		total := e.underruns
		e.mu.Unlock()
		e.notifyState(StateError)
		e.notifyUnderrun(total)
		return ErrInsufficientBuffer
	}

	if !e.sinkStarted {
		if err := e.sink.Start(e.render); err != nil {
			e.state = StateError
			e.mu.Unlock()
			e.notifyState(StateError)
			return fmt.Errorf("engine: output start failed: %w", err)
		}
		e.sinkStarted = true
	} else {
		if err := e.sink.Resume(); err != nil {
			e.state = StateError
			e.mu.Unlock()
			e.notifyState(StateError)
			return fmt.Errorf("engine: output resume failed: %w", err)
		}
	}

	e.framesPlayed = 0
	e.bufferPaused = false
	e.state = StatePlaying
	e.mu.Unlock()

	e.notifyState(StatePlaying)
	return nil
}

// Pause freezes position reporting at the current playback time and
// detaches the audio pull.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return fmt.Errorf("engine: cannot pause from %s", e.state)
	}

	e.pausedAt = e.positionLocked()
	if err := e.sink.Pause(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine: output pause failed: %w", err)
	}
	e.state = StatePaused
	e.mu.Unlock()

	e.notifyState(StatePaused)
	return nil
}

// Resume reattaches the audio pull, continuing sample counting from where
// Pause left off.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return fmt.Errorf("engine: cannot resume from %s", e.state)
	}

	if err := e.sink.Resume(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine: output resume failed: %w", err)
	}
	e.state = StatePlaying
	e.mu.Unlock()

	e.notifyState(StatePlaying)
	return nil
}

// Stop detaches the audio pull and resets all playback counters. It is
// idempotent and safe to call from any state.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return nil
	}

	if e.sinkStarted {
		if err := e.sink.Pause(); err != nil {
			log.Printf("Engine: output pause on stop: %v", err)
		}
	}

	e.framesPlayed = 0
	e.seekOffset = 0
	e.pausedAt = 0
	e.bufferPaused = false
	e.endOfStream = false
	e.state = StateStopped
	e.mu.Unlock()

	e.notifyState(StateStopped)
	return nil
}

// SetSeekOffset anchors subsequent position reports to the given offset.
// The caller is responsible for re-loading the buffer from the matching
// chunk before calling Start again. A paused engine reports the new offset
// immediately.
func (e *Engine) SetSeekOffset(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if seconds < 0 {
		seconds = 0
	}
	e.seekOffset = seconds
	e.pausedAt = seconds
	e.framesPlayed = 0
	// A new feed run follows every seek; a stale end-of-stream flag from
	// the previous run would let the drain-to-stop path fire mid-refill.
	e.endOfStream = false
}

// SetEndOfStream tells the engine the feed has delivered the final chunk:
// the low-water pause no longer applies and the remaining samples drain to
// a natural stop.
func (e *Engine) SetEndOfStream() {
	e.mu.Lock()
	e.endOfStream = true
	e.bufferPaused = false
	e.mu.Unlock()
}

// SetVolume sets the output gain, clamped to [0,1].
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = clampVolume(v)
}

// Volume returns the current gain.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.volume)
}

// Position returns the current playback time in seconds. Position derives
// from frames actually consumed, not wall clock, so buffer-pause stalls do
// not run ahead of the audio heard.
func (e *Engine) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StatePlaying:
		return e.positionLocked()
	case StatePaused:
		return e.pausedAt
	default:
		return 0
	}
}

func (e *Engine) positionLocked() float64 {
	return e.seekOffset + float64(e.framesPlayed)/float64(e.cfg.SampleRate)
}

// State returns the current transport state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsPlaying reports whether the engine is in the playing state.
func (e *Engine) IsPlaying() bool {
	return e.State() == StatePlaying
}

// Stats returns a snapshot of playback counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := 0.0
	switch e.state {
	case StatePlaying:
		current = e.positionLocked()
	case StatePaused:
		current = e.pausedAt
	}

	return Stats{
		IsPlaying:    e.state == StatePlaying,
		CurrentTime:  current,
		FramesPlayed: e.framesPlayed,
		Underruns:    e.underruns,
	}
}

// BufferStatus returns ring buffer fill for buffering indicators.
func (e *Engine) BufferStatus() BufferStatus {
	size := e.ring.Available()
	max := e.ring.Capacity()
	return BufferStatus{
		Size:    size,
		MaxSize: max,
		Health:  float64(size) / float64(max),
	}
}

// Close stops playback and releases the output sink.
func (e *Engine) Close() error {
	e.Stop()
	return e.sink.Close()
}

// render is the per-tick audio pull. It never blocks: when data is short it
// substitutes silence and reports the condition through counters.
func (e *Engine) render(dst []float32, frames int) {
	out := dst[:frames*e.outChannels]
	for i := range out {
		out[i] = 0
	}

	var underrunTotal uint64
	var notifyUnderrun, notifyStopped bool

	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return
	}

	sampleRate := float64(e.cfg.SampleRate)
	channels := e.cfg.Channels
	buffered := float64(e.ring.Available()) / (sampleRate * float64(channels))

	if e.endOfStream {
		e.bufferPaused = false
	} else {
		// Proactive pause: silence beats distorted partial reads while the
		// feed catches up. The low/high gap prevents flapping.
		if !e.bufferPaused && buffered < e.cfg.LowWaterSeconds {
			e.bufferPaused = true
			e.mu.Unlock()
			return
		}
		if e.bufferPaused {
			if buffered < e.cfg.HighWaterSeconds {
				e.mu.Unlock()
				return
			}
			e.bufferPaused = false
		}
	}

	want := frames * channels
	if cap(e.scratch) < want {
		e.scratch = make([]float32, want)
	}
	n := e.ring.Read(e.scratch[:want])
	gotFrames := n / channels

	if gotFrames < frames && !e.endOfStream {
		// Reactive path: the proactive gate raced with a sudden drain.
		e.underruns++
		underrunTotal = e.underruns
		notifyUnderrun = true
	}

	gain := e.volume
	for f := 0; f < gotFrames; f++ {
		for c := 0; c < e.outChannels; c++ {
			src := c % channels
			if channels == 1 {
				src = 0
			}
			out[f*e.outChannels+c] = e.scratch[f*channels+src] * gain
		}
	}

	// Silence-filled frames do not advance the counter; position reporting
	// tracks frames produced from real data.
	e.framesPlayed += uint64(gotFrames)

	if e.endOfStream && e.ring.Available() == 0 {
		e.state = StateStopped
		e.framesPlayed = 0
		e.seekOffset = 0
		e.endOfStream = false
		notifyStopped = true
	}
	e.mu.Unlock()

	if notifyUnderrun {
		e.notifyUnderrun(underrunTotal)
	}
	if notifyStopped {
		e.notifyState(StateStopped)
	}
}

func (e *Engine) notifyState(s State) {
	if e.cfg.OnStateChange != nil {
		e.cfg.OnStateChange(s)
	}
}

func (e *Engine) notifyUnderrun(total uint64) {
	if e.cfg.OnUnderrun != nil {
		e.cfg.OnUnderrun(total)
	}
}

func clampVolume(v float64) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float32(v)
}
