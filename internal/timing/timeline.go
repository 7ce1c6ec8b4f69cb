// ABOUTME: Chunk timing arithmetic for the streaming timeline
// ABOUTME: Maps playback time to chunk index, in-chunk offset, and play duration
package timing

import (
	"fmt"
	"math"

	"github.com/Cadenza-Audio/cadenza-go/pkg/audio"
)

// Timeline provides pure arithmetic over a track's chunk layout. Boundary
// policy: a time landing exactly on i*chunkInterval belongs to chunk i
// (floor semantics), and the last sample time belongs to the last chunk.
type Timeline struct {
	duration      float64
	chunkInterval float64
	chunkDuration float64
	overlap       float64
	totalChunks   int
}

// ChunkPlan describes where chunk i sits on the track timeline.
type ChunkPlan struct {
	Index        int
	Start        float64
	End          float64
	PlayDuration float64
}

// SeekTarget maps a requested playback time onto a chunk.
type SeekTarget struct {
	ChunkIndex    int
	OffsetInChunk float64
	RemainingPlay float64
}

// New validates the stream metadata and builds a timeline over it.
func New(info audio.StreamInfo) (*Timeline, error) {
	if info.ChunkInterval <= 0 {
		return nil, fmt.Errorf("timing: chunk interval must be positive, got %v", info.ChunkInterval)
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("timing: duration must be positive, got %v", info.Duration)
	}
	if info.OverlapDuration > 0 && info.ChunkDuration < info.ChunkInterval {
		return nil, fmt.Errorf("timing: chunk duration %v shorter than interval %v with overlap in use",
			info.ChunkDuration, info.ChunkInterval)
	}

	total := int(math.Ceil(info.Duration / info.ChunkInterval))
	if info.TotalChunks != 0 && info.TotalChunks != total {
		return nil, fmt.Errorf("timing: metadata reports %d chunks, expected %d", info.TotalChunks, total)
	}

	return &Timeline{
		duration:      info.Duration,
		chunkInterval: info.ChunkInterval,
		chunkDuration: info.ChunkDuration,
		overlap:       info.OverlapDuration,
		totalChunks:   total,
	}, nil
}

// Duration returns the total track length in seconds.
func (t *Timeline) Duration() float64 { return t.duration }

// ChunkInterval returns the seconds of new timeline per chunk.
func (t *Timeline) ChunkInterval() float64 { return t.chunkInterval }

// Overlap returns the lead-in context seconds carried by non-first chunks.
func (t *Timeline) Overlap() float64 { return t.overlap }

// TotalChunks returns the number of chunks covering the track.
func (t *Timeline) TotalChunks() int { return t.totalChunks }

// ChunkIndexFor returns the chunk owning playback time sec. Times at or past
// the end of the track resolve to the final chunk, never out of range.
func (t *Timeline) ChunkIndexFor(sec float64) int {
	if sec <= 0 {
		return 0
	}
	idx := int(math.Floor(sec / t.chunkInterval))
	if idx >= t.totalChunks {
		idx = t.totalChunks - 1
	}
	return idx
}

// Plan returns the timeline span of chunk i. The index is clamped to the
// valid range.
func (t *Timeline) Plan(i int) ChunkPlan {
	if i < 0 {
		i = 0
	}
	if i >= t.totalChunks {
		i = t.totalChunks - 1
	}

	start := float64(i) * t.chunkInterval
	end := start + t.chunkInterval
	if end > t.duration {
		end = t.duration
	}

	return ChunkPlan{
		Index:        i,
		Start:        start,
		End:          end,
		PlayDuration: end - start,
	}
}

// SeekTarget resolves a requested time to a chunk index, in-chunk offset,
// and the play duration remaining in that chunk. Out-of-range times are
// clamped into [0, duration) so the remaining play duration stays positive.
func (t *Timeline) SeekTarget(sec float64) SeekTarget {
	if sec < 0 {
		sec = 0
	}
	if sec >= t.duration {
		// Land just inside the final chunk rather than on the end boundary,
		// which would leave nothing to play.
		sec = math.Nextafter(t.duration, 0)
	}

	idx := t.ChunkIndexFor(sec)
	offset := sec - float64(idx)*t.chunkInterval
	plan := t.Plan(idx)

	return SeekTarget{
		ChunkIndex:    idx,
		OffsetInChunk: offset,
		RemainingPlay: plan.PlayDuration - offset,
	}
}

// Position reports the playback time for elapsed seconds into a chunk
// entered at the given in-chunk offset. This is the single formula the
// engine uses to report position, so it must hold exactly.
func (t *Timeline) Position(chunkIndex int, offsetInChunk, elapsedInChunk float64) float64 {
	return float64(chunkIndex)*t.chunkInterval + offsetInChunk + elapsedInChunk
}
