// ABOUTME: Decoder interface and codec factory
// ABOUTME: Common interface for all chunk payload decoders
package decode

import (
	"fmt"

	"github.com/Cadenza-Audio/cadenza-go/pkg/audio"
)

// Decoder decodes one chunk payload to interleaved float32 PCM samples.
type Decoder interface {
	// Decode converts an encoded chunk payload to PCM samples
	Decode(data []byte) ([]float32, error)

	// Close releases decoder resources
	Close() error
}

// New creates a decoder for the stream format's codec.
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "wav":
		return NewWAV(format)
	case "mp3":
		return NewMP3(format)
	case "flac":
		return NewFLAC(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}
