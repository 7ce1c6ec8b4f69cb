// ABOUTME: Oto-based fallback output sink
// ABOUTME: Feeds a persistent pipe-backed player from a timer-driven render loop
package output

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// feedPeriod is the cadence of the timer-driven render loop.
const feedPeriod = 20 * time.Millisecond

// Oto is the fallback output backend for hosts without a usable device
// callback. A feeder goroutine renders on a fixed period and writes into a
// pipe drained by a persistent oto player.
type Oto struct {
	ctx        context.Context
	cancel     context.CancelFunc
	format     Format
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	paused     atomic.Bool
	started    bool
}

// NewOto creates the fallback sink.
func NewOto(format Format) *Oto {
	ctx, cancel := context.WithCancel(context.Background())

	return &Oto{
		ctx:    ctx,
		cancel: cancel,
		format: format,
	}
}

// Start opens the oto context and launches the feeder loop.
func (o *Oto) Start(render RenderFunc) error {
	if o.started {
		return fmt.Errorf("sink already started")
	}

	op := &oto.NewContextOptions{
		SampleRate:   o.format.SampleRate,
		ChannelCount: o.format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.started = true

	go o.feedLoop(render)

	log.Printf("Audio output started: %dHz, %d channels (oto)", o.format.SampleRate, o.format.Channels)
	return nil
}

// feedLoop renders one period of frames per tick and writes them to the
// pipe. While paused it writes silence so the player never stalls.
func (o *Oto) feedLoop(render RenderFunc) {
	frames := o.format.SampleRate * int(feedPeriod/time.Millisecond) / 1000
	samples := make([]float32, frames*o.format.Channels)
	out := make([]byte, len(samples)*2)

	ticker := time.NewTicker(feedPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			if o.paused.Load() {
				for i := range samples {
					samples[i] = 0
				}
			} else {
				render(samples, frames)
			}

			encodeS16LE(out, samples)
			if _, err := o.pipeWriter.Write(out); err != nil {
				return
			}
		}
	}
}

// Pause suspends rendering; the feeder keeps the pipe fed with silence.
func (o *Oto) Pause() error {
	o.paused.Store(true)
	return nil
}

// Resume reattaches the render pull.
func (o *Oto) Resume() error {
	o.paused.Store(false)
	return nil
}

// Close stops the feeder and releases the player.
func (o *Oto) Close() error {
	o.cancel()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.otoCtx = nil
	}
	o.started = false
	return nil
}

// Channels returns the output channel count.
func (o *Oto) Channels() int {
	return o.format.Channels
}
