// ABOUTME: Circular buffer for interleaved PCM samples
// ABOUTME: Decouples bursty network-fed writes from audio-clock-paced reads
package buffer

import (
	"errors"
	"sync"
)

// ErrOverflow is returned by Write when the buffer cannot hold all samples.
// Unread audio is never overwritten; the excess is refused.
var ErrOverflow = errors.New("buffer: overflow, unread samples would be overwritten")

// Ring is a fixed-capacity circular buffer of interleaved float32 samples.
// It is designed for exactly one producer (the feed coordinator) and one
// consumer (the playback engine's render callback); the mutex covers the
// cursor arithmetic between those two goroutines.
type Ring struct {
	mu       sync.Mutex
	buf      []float32
	readPos  int
	writePos int
	count    int
}

// New creates a ring buffer holding capacity interleaved samples.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{
		buf: make([]float32, capacity),
	}
}

// Write appends samples at the write cursor, wrapping at capacity. It
// returns the number of samples accepted and ErrOverflow if the buffer
// filled before all samples were written.
func (r *Ring) Write(samples []float32) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.buf) - r.count
	if n > len(samples) {
		n = len(samples)
	}

	// At most two segments: up to the wrap point, then from the start.
	written := 0
	for written < n {
		c := copy(r.buf[r.writePos:], samples[written:n])
		r.writePos = (r.writePos + c) % len(r.buf)
		written += c
	}
	r.count += written

	if written < len(samples) {
		return written, ErrOverflow
	}
	return written, nil
}

// Read copies up to len(dst) samples from the read cursor into dst and
// returns how many were copied. A short read signals a potential underrun;
// the caller decides the underrun policy.
func (r *Ring) Read(dst []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.count
	if n > len(dst) {
		n = len(dst)
	}

	read := 0
	for read < n {
		end := r.readPos + (n - read)
		if end > len(r.buf) {
			end = len(r.buf)
		}
		c := copy(dst[read:], r.buf[r.readPos:end])
		r.readPos = (r.readPos + c) % len(r.buf)
		read += c
	}
	r.count -= read
	return read
}

// Available returns the count of unread interleaved samples.
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Free returns the number of samples that can be written without overflow.
func (r *Ring) Free() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf) - r.count
}

// Capacity returns the fixed buffer capacity in interleaved samples.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Reset clears the cursors and available count without reallocating. Used
// on seek, stop, and track change.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readPos = 0
	r.writePos = 0
	r.count = 0
}
