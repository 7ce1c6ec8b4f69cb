// ABOUTME: High-level Player API for Cadenza chunked streaming
// ABOUTME: Wires the stream client, timeline, feed, and engine into one facade
package cadenza

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Cadenza-Audio/cadenza-go/internal/buffer"
	"github.com/Cadenza-Audio/cadenza-go/internal/client"
	"github.com/Cadenza-Audio/cadenza-go/internal/engine"
	"github.com/Cadenza-Audio/cadenza-go/internal/feed"
	"github.com/Cadenza-Audio/cadenza-go/internal/output"
	"github.com/Cadenza-Audio/cadenza-go/internal/timing"
	"github.com/Cadenza-Audio/cadenza-go/pkg/audio"
	"github.com/Cadenza-Audio/cadenza-go/pkg/audio/decode"
)

// newSink creates the output sink; replaced in tests.
var newSink = output.Detect

// Config holds player configuration
type Config struct {
	// ServerURL is the backend base URL (http://host:port)
	ServerURL string

	// PlayerName is the display name for this player
	PlayerName string

	// Volume is the initial gain in [0,1] (default: 1.0)
	Volume float64

	// RingSeconds is the sample buffer capacity in seconds (default: 30)
	RingSeconds float64

	// PreRollSeconds is the minimum buffered audio before playback
	// starts (default: 2.0, capped at half the track duration)
	PreRollSeconds float64

	// EngineLowWater and EngineHighWater gate the read-side buffer
	// pause (defaults: 1.0 and 3.0)
	EngineLowWater  float64
	EngineHighWater float64

	// FeedLowWater and FeedHighWater gate the write-side fetch
	// backpressure (defaults: 5.0 and 10.0)
	FeedLowWater  float64
	FeedHighWater float64

	// OnStateChange is called when the transport state changes
	OnStateChange func(state string)

	// OnTrackEnd is called when the final chunk has drained
	OnTrackEnd func()

	// OnUnderrun is called on each underrun with the running total
	OnUnderrun func(total uint64)

	// OnError is called when the feed fails
	OnError func(error)
}

// Event is a server-push notification from the signaling channel.
type Event struct {
	Type    string
	Payload json.RawMessage
}

// Player provides high-level chunked playback from a Cadenza server
type Player struct {
	config Config

	stream *client.StreamClient
	events *client.EventListener
	evOut  chan Event

	mu       sync.Mutex
	info     audio.StreamInfo
	timeline *timing.Timeline
	ring     *buffer.Ring
	decoder  decode.Decoder
	sink     output.Sink
	engine   *engine.Engine
	feed     *feed.Coordinator
	loaded   bool
	feedDone atomic.Bool
}

// NewPlayer creates a new player with the given configuration
func NewPlayer(config Config) (*Player, error) {
	if config.ServerURL == "" {
		return nil, fmt.Errorf("cadenza: server URL is required")
	}
	if config.PlayerName == "" {
		config.PlayerName = "cadenza-player"
	}
	if config.Volume == 0 {
		config.Volume = 1.0
	}
	if config.RingSeconds == 0 {
		config.RingSeconds = 30.0
	}
	if config.PreRollSeconds == 0 {
		config.PreRollSeconds = 2.0
	}

	return &Player{
		config: config,
		stream: client.NewStreamClient(config.ServerURL),
		evOut:  make(chan Event, 32),
	}, nil
}

// Connect starts the signaling listener. Playback works without it; the
// event channel only carries server-push notifications such as transcode
// progress.
func (p *Player) Connect() error {
	u, err := url.Parse(p.config.ServerURL)
	if err != nil {
		return fmt.Errorf("cadenza: bad server URL: %w", err)
	}

	p.events = client.NewEventListener(u.Host)
	if err := p.events.Connect(); err != nil {
		return fmt.Errorf("cadenza: signaling connect failed: %w", err)
	}

	go p.forwardEvents()
	return nil
}

// Events returns the server-push notification channel.
func (p *Player) Events() <-chan Event {
	return p.evOut
}

func (p *Player) forwardEvents() {
	defer close(p.evOut)
	for ev := range p.events.Events() {
		select {
		case p.evOut <- Event{Type: ev.Type, Payload: ev.Payload}:
		default:
			// Slow consumer: notifications are advisory, drop rather than stall.
		}
	}
}

// Load fetches the track's stream metadata and builds the playback graph.
// It starts the feed from the beginning of the track but does not start
// playback; call Play once ready.
func (p *Player) Load(ctx context.Context, trackID string) error {
	info, err := p.stream.StreamInfo(ctx, trackID)
	if err != nil {
		return fmt.Errorf("cadenza: stream info: %w", err)
	}

	tl, err := timing.New(info)
	if err != nil {
		return fmt.Errorf("cadenza: timeline: %w", err)
	}

	dec, err := decode.New(info.Format())
	if err != nil {
		return fmt.Errorf("cadenza: decoder: %w", err)
	}

	p.teardown()

	p.mu.Lock()
	defer p.mu.Unlock()

	ring := buffer.New(int(p.config.RingSeconds*float64(info.SampleRate)) * info.Channels)
	sink := newSink(output.Format{SampleRate: info.SampleRate, Channels: info.Channels})

	// Short tracks can never satisfy a fixed pre-roll; cap it so they
	// remain playable.
	preRoll := p.config.PreRollSeconds
	if half := info.Duration / 2; half < preRoll {
		preRoll = half
	}

	eng, err := engine.New(engine.Config{
		SampleRate:       info.SampleRate,
		Channels:         info.Channels,
		PreRollSeconds:   preRoll,
		LowWaterSeconds:  p.config.EngineLowWater,
		HighWaterSeconds: p.config.EngineHighWater,
		Volume:           p.config.Volume,
		OnStateChange:    p.onEngineState,
		OnUnderrun:       p.config.OnUnderrun,
	}, ring, sink)
	if err != nil {
		sink.Close()
		dec.Close()
		return fmt.Errorf("cadenza: engine: %w", err)
	}

	fd, err := feed.New(feed.Config{
		Info:             info,
		Timeline:         tl,
		Ring:             ring,
		Source:           p.stream,
		Decoder:          dec,
		LowWaterSeconds:  p.config.FeedLowWater,
		HighWaterSeconds: p.config.FeedHighWater,
		OnComplete:       p.onFeedComplete,
		OnError:          p.onFeedError,
	})
	if err != nil {
		eng.Close()
		dec.Close()
		return fmt.Errorf("cadenza: feed: %w", err)
	}

	p.info = info
	p.timeline = tl
	p.ring = ring
	p.decoder = dec
	p.sink = sink
	p.engine = eng
	p.feed = fd
	p.loaded = true
	p.feedDone.Store(false)

	log.Printf("Loaded track %s: %s %dHz %dch %d-bit, %.2fs in %d chunks",
		info.TrackID, info.Codec, info.SampleRate, info.Channels, info.BitDepth,
		info.Duration, info.TotalChunks)

	fd.Start(tl.SeekTarget(0))
	return nil
}

func (p *Player) onEngineState(s engine.State) {
	if p.config.OnStateChange != nil {
		p.config.OnStateChange(s.String())
	}
	if s == engine.StateStopped && p.isFeedDone() && p.config.OnTrackEnd != nil {
		p.config.OnTrackEnd()
	}
}

func (p *Player) onFeedComplete() {
	p.feedDone.Store(true)

	p.mu.Lock()
	eng := p.engine
	p.mu.Unlock()

	if eng != nil {
		eng.SetEndOfStream()
	}
}

func (p *Player) onFeedError(err error) {
	if p.config.OnError != nil {
		p.config.OnError(err)
	}
}

func (p *Player) isFeedDone() bool {
	return p.feedDone.Load()
}

func (p *Player) requireLoaded() (*engine.Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded || p.engine == nil {
		return nil, fmt.Errorf("cadenza: no track loaded")
	}
	return p.engine, nil
}

// Play waits for the pre-roll threshold and starts playback. The wait is
// bounded by ctx; pass a deadline for slow networks.
func (p *Player) Play(ctx context.Context) error {
	eng, err := p.requireLoaded()
	if err != nil {
		return err
	}

	if err := p.waitForPreRoll(ctx); err != nil {
		return err
	}
	// The completion callback sets the engine flag on its own goroutine;
	// re-assert it here so the start gate never races a just-finished feed.
	if p.isFeedDone() {
		eng.SetEndOfStream()
	}
	return eng.Start()
}

// waitForPreRoll polls the buffer level until it satisfies the engine's
// pre-roll gate. A completed feed short-circuits the wait: no more data is
// coming.
func (p *Player) waitForPreRoll(ctx context.Context) error {
	p.mu.Lock()
	info := p.info
	ring := p.ring
	preRoll := p.config.PreRollSeconds
	if half := info.Duration / 2; half < preRoll {
		preRoll = half
	}
	p.mu.Unlock()

	want := int(preRoll*float64(info.SampleRate)) * info.Channels
	for {
		if ring.Available() >= want || p.isFeedDone() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Pause pauses playback, freezing the reported position
func (p *Player) Pause() error {
	eng, err := p.requireLoaded()
	if err != nil {
		return err
	}
	return eng.Pause()
}

// Resume resumes paused playback
func (p *Player) Resume() error {
	eng, err := p.requireLoaded()
	if err != nil {
		return err
	}
	return eng.Resume()
}

// Toggle pauses when playing and resumes when paused
func (p *Player) Toggle() error {
	eng, err := p.requireLoaded()
	if err != nil {
		return err
	}

	switch eng.State() {
	case engine.StatePlaying:
		return eng.Pause()
	case engine.StatePaused:
		return eng.Resume()
	default:
		return nil
	}
}

// Stop halts playback and the feed
func (p *Player) Stop() error {
	p.mu.Lock()
	eng := p.engine
	fd := p.feed
	p.mu.Unlock()

	if fd != nil {
		fd.Stop()
	}
	if eng != nil {
		return eng.Stop()
	}
	return nil
}

// Seek moves playback to sec. The in-flight feed is cancelled, buffered
// pre-seek audio discarded, and fetching re-anchored at the owning chunk.
// Playback resumes automatically if it was running.
func (p *Player) Seek(ctx context.Context, sec float64) error {
	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return fmt.Errorf("cadenza: no track loaded")
	}
	eng := p.engine
	fd := p.feed
	tl := p.timeline
	p.mu.Unlock()
	p.feedDone.Store(false)

	wasPlaying := eng.State() == engine.StatePlaying
	if wasPlaying {
		if err := eng.Pause(); err != nil {
			return err
		}
	}

	// Anchor the engine before the feed restarts: the new run's completion
	// callback may fire immediately on short tails, and must not race the
	// offset reset.
	target := tl.SeekTarget(sec)
	eng.SetSeekOffset(tl.Position(target.ChunkIndex, target.OffsetInChunk, 0))
	fd.Seek(sec)

	if wasPlaying {
		if err := p.waitForPreRoll(ctx); err != nil {
			return err
		}
		if p.isFeedDone() {
			eng.SetEndOfStream()
		}
		return eng.Start()
	}
	return nil
}

// SetVolume sets the output gain in [0,1]
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	eng := p.engine
	p.config.Volume = v
	p.mu.Unlock()

	if eng != nil {
		eng.SetVolume(v)
	}
}

// Position returns the current playback time in seconds
func (p *Player) Position() float64 {
	p.mu.Lock()
	eng := p.engine
	p.mu.Unlock()

	if eng == nil {
		return 0
	}
	return eng.Position()
}

// Duration returns the loaded track's length in seconds
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info.Duration
}

// Info returns the loaded track's stream metadata
func (p *Player) Info() audio.StreamInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info
}

// State returns the transport state name
func (p *Player) State() string {
	p.mu.Lock()
	eng := p.engine
	p.mu.Unlock()

	if eng == nil {
		return "idle"
	}
	return eng.State().String()
}

// Stats returns playback counters
func (p *Player) Stats() engine.Stats {
	p.mu.Lock()
	eng := p.engine
	p.mu.Unlock()

	if eng == nil {
		return engine.Stats{}
	}
	return eng.Stats()
}

// BufferStatus returns buffer fill for buffering indicators
func (p *Player) BufferStatus() engine.BufferStatus {
	p.mu.Lock()
	eng := p.engine
	p.mu.Unlock()

	if eng == nil {
		return engine.BufferStatus{}
	}
	return eng.BufferStatus()
}

// Close stops playback and releases all resources
func (p *Player) Close() error {
	p.teardown()

	p.mu.Lock()
	ev := p.events
	p.mu.Unlock()

	if ev != nil {
		ev.Close()
	}
	return nil
}

// teardown releases the per-track playback graph. Engine callbacks may
// fire during shutdown, so the lock is not held across component Close.
func (p *Player) teardown() {
	p.mu.Lock()
	fd, eng, dec := p.feed, p.engine, p.decoder
	p.feed, p.engine, p.decoder = nil, nil, nil
	p.loaded = false
	p.mu.Unlock()

	if fd != nil {
		fd.Stop()
	}
	if eng != nil {
		eng.Close()
	}
	if dec != nil {
		dec.Close()
	}
}
