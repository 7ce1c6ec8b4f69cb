// ABOUTME: WAV chunk decoder
// ABOUTME: Decodes WAV-container segments to float32 samples
package decode

import (
	"bytes"
	"fmt"

	cadaudio "github.com/Cadenza-Audio/cadenza-go/pkg/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder decodes WAV-container chunk payloads.
type WAVDecoder struct {
	format cadaudio.Format
}

// NewWAV creates a new WAV decoder
func NewWAV(format cadaudio.Format) (Decoder, error) {
	if format.Codec != "wav" {
		return nil, fmt.Errorf("invalid codec for WAV decoder: %s", format.Codec)
	}

	return &WAVDecoder{format: format}, nil
}

// Decode converts a WAV segment to float32 samples
func (d *WAVDecoder) Decode(data []byte) ([]float32, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid wav payload")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode error: %w", err)
	}

	scale := float32(int64(1) << (buf.SourceBitDepth - 1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}

	return samples, nil
}

// Close releases decoder resources
func (d *WAVDecoder) Close() error {
	return nil
}
