// ABOUTME: FLAC chunk decoder
// ABOUTME: Decodes self-contained FLAC segments to float32 samples
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Cadenza-Audio/cadenza-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC chunk payloads. Each payload is a complete FLAC
// stream (header plus frames), parsed frame by frame.
type FLACDecoder struct {
	format audio.Format
}

// NewFLAC creates a new FLAC decoder
func NewFLAC(format audio.Format) (Decoder, error) {
	if format.Codec != "flac" {
		return nil, fmt.Errorf("invalid codec for FLAC decoder: %s", format.Codec)
	}

	return &FLACDecoder{format: format}, nil
}

// Decode converts a FLAC segment to interleaved float32 samples
func (d *FLACDecoder) Decode(data []byte) ([]float32, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse flac stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	var samples []float32
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame parse error: %w", err)
		}

		blockSize := int(frame.BlockSize)
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float32(frame.Subframes[ch].Samples[i])/scale)
			}
		}
	}

	return samples, nil
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	return nil
}
