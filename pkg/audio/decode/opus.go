// ABOUTME: Opus chunk decoder
// ABOUTME: Decodes Opus packets to float32 samples
package decode

import (
	"fmt"

	"github.com/Cadenza-Audio/cadenza-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusDecoder decodes Opus chunk payloads. The opus decoder carries
// prediction state across packets, so one instance persists per stream.
type OpusDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		format:  format,
	}, nil
}

// Decode converts an Opus packet to float32 samples
func (d *OpusDecoder) Decode(data []byte) ([]float32, error) {
	pcmSize := 5760 * d.format.Channels // Max frame size
	pcm16 := make([]int16, pcmSize)

	n, err := d.decoder.Decode(data, pcm16)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	actualSamples := n * d.format.Channels
	samples := make([]float32, actualSamples)
	for i := 0; i < actualSamples; i++ {
		samples[i] = audio.SampleFromInt16(pcm16[i])
	}
	return samples, nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
