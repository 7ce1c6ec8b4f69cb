// ABOUTME: Chunk fetch/feed coordinator
// ABOUTME: Sequentially fetches, decodes, trims, and writes chunks into the ring buffer
package feed

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Cadenza-Audio/cadenza-go/internal/buffer"
	"github.com/Cadenza-Audio/cadenza-go/internal/timing"
	"github.com/Cadenza-Audio/cadenza-go/pkg/audio"
	"github.com/Cadenza-Audio/cadenza-go/pkg/audio/decode"
)

// Source delivers stream metadata and chunk payloads from the backend.
type Source interface {
	// StreamInfo fetches the per-track streaming metadata.
	StreamInfo(ctx context.Context, trackID string) (audio.StreamInfo, error)

	// Chunk fetches the encoded payload for one chunk index.
	Chunk(ctx context.Context, trackID string, index int) ([]byte, error)
}

// Config holds coordinator configuration. The write-side water marks mirror
// the engine's read-side marks: fetching pauses once the buffer holds
// HighWaterSeconds of audio and resumes below LowWaterSeconds.
type Config struct {
	Info     audio.StreamInfo
	Timeline *timing.Timeline
	Ring     *buffer.Ring
	Source   Source
	Decoder  decode.Decoder

	LowWaterSeconds  float64       // default 5.0
	HighWaterSeconds float64       // default 10.0
	PollInterval     time.Duration // default 50ms

	// OnComplete fires after the final chunk has been written.
	OnComplete func()

	// OnError fires when a fetch or decode fails; the feed stops.
	OnError func(error)
}

// Coordinator is the single producer for the ring buffer. It requests
// chunks strictly in timeline order, trims overlap context, and applies
// write-side backpressure. A seek cancels the in-flight feed, joins it, and
// re-anchors at the new chunk index so stale audio never reaches the buffer.
type Coordinator struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates the configuration and creates a coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Timeline == nil || cfg.Ring == nil || cfg.Source == nil || cfg.Decoder == nil {
		return nil, fmt.Errorf("feed: timeline, ring, source, and decoder are required")
	}
	if cfg.Info.SampleRate <= 0 || cfg.Info.Channels <= 0 {
		return nil, fmt.Errorf("feed: invalid format %dHz/%dch", cfg.Info.SampleRate, cfg.Info.Channels)
	}
	if cfg.LowWaterSeconds == 0 {
		cfg.LowWaterSeconds = 5.0
	}
	if cfg.HighWaterSeconds == 0 {
		cfg.HighWaterSeconds = 10.0
	}
	if cfg.LowWaterSeconds >= cfg.HighWaterSeconds {
		return nil, fmt.Errorf("feed: low water mark %v must be below high water mark %v",
			cfg.LowWaterSeconds, cfg.HighWaterSeconds)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}

	return &Coordinator{cfg: cfg}, nil
}

// Start begins feeding from the given seek target. Any previous feed is
// stopped first.
func (c *Coordinator) Start(target timing.SeekTarget) {
	c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx, target)
}

// Seek cancels the in-flight feed, discards buffered pre-seek audio, and
// re-anchors fetching at the chunk owning sec. It returns the resolved
// target so the caller can anchor the engine's position baseline.
func (c *Coordinator) Seek(sec float64) timing.SeekTarget {
	target := c.cfg.Timeline.SeekTarget(sec)

	// The feed goroutine must be fully joined before the reset: a write
	// landing after the reset would replay stale pre-seek audio.
	c.Stop()
	c.cfg.Ring.Reset()
	c.Start(target)

	return target
}

// Stop cancels the feed and waits for the goroutine to exit. It is
// idempotent and safe to call from any state.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// run feeds chunks sequentially until the track ends, the feed fails, or
// the context is cancelled.
func (c *Coordinator) run(ctx context.Context, target timing.SeekTarget) {
	defer c.wg.Done()

	info := c.cfg.Info
	tl := c.cfg.Timeline

	for i := target.ChunkIndex; i < tl.TotalChunks(); i++ {
		if err := c.waitForRoom(ctx); err != nil {
			return
		}

		data, err := c.cfg.Source.Chunk(ctx, info.TrackID, i)
		if ctx.Err() != nil {
			// Cancelled mid-fetch: the result belongs to a stale position.
			return
		}
		if err != nil {
			c.reportError(fmt.Errorf("fetch chunk %d: %w", i, err))
			return
		}

		samples, err := c.cfg.Decoder.Decode(data)
		if err != nil {
			c.reportError(fmt.Errorf("decode chunk %d: %w", i, err))
			return
		}

		seg := c.trim(samples, i, target)
		if !c.writeAll(ctx, seg) {
			return
		}
	}

	log.Printf("Feed complete: %d chunks for track %s", tl.TotalChunks()-target.ChunkIndex, info.TrackID)
	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete()
	}
}

// trim drops the overlap lead-in of non-first chunks, skips the in-chunk
// seek offset on the anchor chunk, and caps the segment at the chunk's play
// duration so encoder padding never reaches the timeline.
func (c *Coordinator) trim(samples []float32, index int, target timing.SeekTarget) []float32 {
	lead := 0.0
	if index > 0 {
		lead = c.cfg.Timeline.Overlap()
	}
	keep := c.cfg.Timeline.Plan(index).PlayDuration
	if index == target.ChunkIndex {
		lead += target.OffsetInChunk
		keep = target.RemainingPlay
	}

	start := c.samplesFor(lead)
	count := c.samplesFor(keep)

	if start > len(samples) {
		start = len(samples)
	}
	if start+count > len(samples) {
		count = len(samples) - start
	}
	return samples[start : start+count]
}

// samplesFor converts seconds to a frame-aligned interleaved sample count.
func (c *Coordinator) samplesFor(seconds float64) int {
	frames := int(math.Round(seconds * float64(c.cfg.Info.SampleRate)))
	return frames * c.cfg.Info.Channels
}

// waitForRoom applies the write-side water marks: once the buffer holds
// HighWaterSeconds it blocks until the level drops below LowWaterSeconds.
func (c *Coordinator) waitForRoom(ctx context.Context) error {
	if c.bufferedSeconds() < c.cfg.HighWaterSeconds {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
			if c.bufferedSeconds() < c.cfg.LowWaterSeconds {
				return nil
			}
		}
	}
}

// writeAll writes the segment into the ring, waiting out transient fullness.
// It returns false when cancelled.
func (c *Coordinator) writeAll(ctx context.Context, seg []float32) bool {
	for len(seg) > 0 {
		n, err := c.cfg.Ring.Write(seg)
		seg = seg[n:]
		if err == nil {
			return true
		}

		// Buffer full: wait for the consumer to drain.
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.cfg.PollInterval):
		}
	}
	return true
}

func (c *Coordinator) bufferedSeconds() float64 {
	return float64(c.cfg.Ring.Available()) / float64(c.cfg.Info.SampleRate*c.cfg.Info.Channels)
}

func (c *Coordinator) reportError(err error) {
	log.Printf("Feed error: %v", err)
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}
