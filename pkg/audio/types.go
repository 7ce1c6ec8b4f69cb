// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats, track metadata, and sample conversions
package audio

// Format describes the PCM format of a decoded chunk stream
type Format struct {
	Codec       string
	SampleRate  int
	Channels    int
	BitDepth    int
	CodecHeader []byte // For FLAC, Opus, etc.
}

// StreamInfo is the per-track streaming metadata supplied by the backend.
// It is fetched once before streaming begins and treated as read-only.
type StreamInfo struct {
	TrackID    string `json:"trackId"`
	Codec      string `json:"codec"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bitDepth"`

	// Duration is the total track length in seconds.
	Duration float64 `json:"duration"`

	// ChunkDuration is the seconds of audio payload inside one delivered
	// chunk, including any overlap context.
	ChunkDuration float64 `json:"chunkDuration"`

	// ChunkInterval is the seconds of new timeline advanced by each chunk.
	ChunkInterval float64 `json:"chunkInterval"`

	// ChunkPlayableDuration is the seconds of a full chunk that survive
	// overlap trimming. Informational; the timeline derives per-chunk play
	// durations itself.
	ChunkPlayableDuration float64 `json:"chunkPlayableDuration"`

	// OverlapDuration is the seconds of lead-in context included in
	// non-first chunks, trimmed before sequencing.
	OverlapDuration float64 `json:"overlapDuration"`

	TotalChunks int `json:"totalChunks"`
}

// Format returns the PCM format described by the stream metadata.
func (s StreamInfo) Format() Format {
	return Format{
		Codec:      s.Codec,
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		BitDepth:   s.BitDepth,
	}
}

// SampleFromInt16 converts an int16 sample to float32 in [-1, 1)
func SampleFromInt16(s int16) float32 {
	return float32(s) / 32768.0
}

// SampleToInt16 converts a float32 sample to int16 with clipping
func SampleToInt16(f float32) int16 {
	if f > 1.0 {
		f = 1.0
	} else if f < -1.0 {
		f = -1.0
	}
	return int16(f * 32767.0)
}

// SampleFromInt24 converts a sign-extended 24-bit sample to float32
func SampleFromInt24(v int32) float32 {
	return float32(v) / 8388608.0
}

// Int24FromBytes reconstructs a little-endian 24-bit value and sign-extends
// it to int32
func Int24FromBytes(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^int32(0xFFFFFF)
	}
	return val
}
