package stream

import (
	"errors"
	"time"
)

// ErrInsufficientData is returned when the buffer does not yet hold a full frame.
// It is not fatal: callers wait for more audio.
var ErrInsufficientData = errors.New("stream: insufficient data for frame")

// Frame is an immutable snapshot of consecutive samples.
type Frame struct {
	Samples    []float64
	SampleRate int
	// Position is the stream index one past the last sample in the frame
	Position int64
}

// Timestamp is the stream time of the end of the frame
func (f Frame) Timestamp() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(f.Position) / float64(f.SampleRate) * float64(time.Second))
}

// Len returns the number of samples
func (f Frame) Len() int {
	return len(f.Samples)
}

// FrameExtractor pulls the most recent window of samples out of a RingBuffer.
// It does not track position: the caller advances by hop before extracting.
type FrameExtractor struct {
	ring       *RingBuffer
	sampleRate int
}

// NewFrameExtractor creates an extractor over ring
func NewFrameExtractor(ring *RingBuffer, sampleRate int) *FrameExtractor {
	return &FrameExtractor{
		ring:       ring,
		sampleRate: sampleRate,
	}
}

// Extract returns the latest size samples as a Frame, or false when fewer
// than size samples are buffered. It never blocks and never pads.
func (fe *FrameExtractor) Extract(size int) (Frame, bool) {
	raw, position, ok := fe.ring.Snapshot(size)
	if !ok {
		return Frame{}, false
	}

	samples := make([]float64, len(raw))
	for i, s := range raw {
		samples[i] = float64(s)
	}

	return Frame{
		Samples:    samples,
		SampleRate: fe.sampleRate,
		Position:   position,
	}, true
}

// ExtractFrame is the error-returning form of Extract
func (fe *FrameExtractor) ExtractFrame(size int) (Frame, error) {
	frame, ok := fe.Extract(size)
	if !ok {
		return Frame{}, ErrInsufficientData
	}
	return frame, nil
}
