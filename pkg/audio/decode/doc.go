// ABOUTME: Package documentation for chunk decoders
// ABOUTME: Codec implementations behind the Decoder interface

// Package decode converts encoded chunk payloads into interleaved float32
// PCM. Each chunk is an independently decodable segment, so decoders hold
// no cross-chunk state except where the codec requires it (Opus).
package decode
