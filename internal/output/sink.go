// ABOUTME: Sample consumer interface for audio output backends
// ABOUTME: Defines the render pull contract shared by the malgo and oto sinks
package output

import (
	"log"

	"github.com/Cadenza-Audio/cadenza-go/pkg/audio"
)

// Format describes the output device format a sink is opened with.
type Format struct {
	SampleRate int
	Channels   int
}

// RenderFunc fills dst with frames*channels interleaved float32 samples.
// It is invoked on the sink's audio cadence and must never block; when no
// data is available it fills silence.
type RenderFunc func(dst []float32, frames int)

// Sink pulls rendered samples on an audio-clock cadence and plays them.
// The two implementations (device callback and ticker-fed pipe) share this
// contract so the engine never cares which backend is active.
type Sink interface {
	// Start opens the device and begins pulling from render.
	Start(render RenderFunc) error

	// Pause detaches the pull without releasing the device.
	Pause() error

	// Resume reattaches the pull after Pause.
	Resume() error

	// Close releases the device. The sink cannot be restarted.
	Close() error

	// Channels returns the output channel count.
	Channels() int
}

// Detect selects an output backend for the format: the callback-driven
// malgo sink when the host audio system is reachable, otherwise the
// ticker-fed oto sink.
func Detect(format Format) Sink {
	if s, err := NewMalgo(format); err == nil {
		return s
	} else {
		log.Printf("malgo backend unavailable (%v), falling back to oto", err)
	}
	return NewOto(format)
}

// encodeS16LE converts float32 samples to signed 16-bit little-endian bytes.
func encodeS16LE(dst []byte, src []float32) {
	for i, f := range src {
		s := audio.SampleToInt16(f)
		dst[i*2] = byte(s)
		dst[i*2+1] = byte(s >> 8)
	}
}
