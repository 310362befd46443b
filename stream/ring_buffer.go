package stream

import (
	"sync"
)

// RingBuffer is a fixed-capacity circular store of mono float32 samples.
//
// Pushing past capacity overwrites the oldest samples, so the buffer always
// holds the most recent audio. It has one writer (the capture callback) and one
// reader (the frame extractor); a mutex guards the indices. Reads never block.
type RingBuffer struct {
	mu      sync.Mutex
	buf     []float32
	written int64 // total samples ever pushed; write index is written % len(buf)
}

// NewRingBuffer creates a buffer holding capacity samples
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		buf: make([]float32, capacity),
	}
}

// Push appends samples, evicting the oldest data once capacity is exceeded.
// When a single push is larger than the buffer only its tail is kept.
func (rb *RingBuffer) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.buf)
	skipped := 0
	if len(samples) > size {
		skipped = len(samples) - size
		samples = samples[skipped:]
	}
	rb.written += int64(skipped)

	pos := int(rb.written % int64(size))
	n := copy(rb.buf[pos:], samples)
	if n < len(samples) {
		copy(rb.buf, samples[n:])
	}
	rb.written += int64(len(samples))
}

// Latest copies the most recent n samples into a new slice. It returns false,
// without padding, when fewer than n samples are stored.
func (rb *RingBuffer) Latest(n int) ([]float32, bool) {
	out, _, ok := rb.Snapshot(n)
	return out, ok
}

// Snapshot is Latest plus the stream position (Written) the copy ends at,
// taken atomically with respect to Push.
func (rb *RingBuffer) Snapshot(n int) ([]float32, int64, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if n <= 0 || n > rb.lenLocked() {
		return nil, rb.written, false
	}

	out := make([]float32, n)
	size := int64(len(rb.buf))
	start := int((rb.written - int64(n)) % size)

	c := copy(out, rb.buf[start:])
	if c < n {
		copy(out[c:], rb.buf[:n-c])
	}
	return out, rb.written, true
}

// Len returns the number of stored samples
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.lenLocked()
}

func (rb *RingBuffer) lenLocked() int {
	if rb.written < int64(len(rb.buf)) {
		return int(rb.written)
	}
	return len(rb.buf)
}

// Cap returns the buffer capacity in samples
func (rb *RingBuffer) Cap() int {
	return len(rb.buf)
}

// Written returns the total number of samples pushed since creation or Reset.
// The feeder loop uses it as a stream position.
func (rb *RingBuffer) Written() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.written
}

// Reset empties the buffer
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.written = 0
}
