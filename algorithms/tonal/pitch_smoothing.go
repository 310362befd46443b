package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-voz/algorithms/common"
)

// SmootherParams configures a PitchTrackSmoother
type SmootherParams struct {
	MedianWindow        int     // raw estimates in the median (K)
	TransitionThreshold float64 // Hz; larger jumps are held back
	RejectionScale      float64 // confidence multiplier for held-back frames
	// MaxConsecutiveRejections re-anchors the track on the median after this
	// many held-back frames in a row. 0 never re-anchors: every large jump
	// repeats the previous value, however long the new pitch is held.
	MaxConsecutiveRejections int
	TrackLength              int
}

// DefaultSmootherParams returns K=5, 10 Hz, ×0.8, re-anchor after 3, track of 10
func DefaultSmootherParams() SmootherParams {
	return SmootherParams{
		MedianWindow:             5,
		TransitionThreshold:      10,
		RejectionScale:           0.8,
		MaxConsecutiveRejections: 3,
		TrackLength:              10,
	}
}

// PitchTrackSmoother removes octave jumps and single-frame outliers from a
// pitch sequence. Each voiced estimate enters a median window; the median is
// accepted when it stays within the transition threshold of the last accepted
// value, otherwise the last value is repeated at reduced confidence.
// Unvoiced estimates pass through and leave the state untouched.
//
// A smoother belongs to one stream and is not safe for concurrent use.
type PitchTrackSmoother struct {
	params SmootherParams

	raw        []float64
	track      []PitchEstimate
	rejections int
}

// NewPitchTrackSmoother creates a smoother; non-positive fields take defaults
func NewPitchTrackSmoother(params SmootherParams) *PitchTrackSmoother {
	def := DefaultSmootherParams()
	if params.MedianWindow <= 0 {
		params.MedianWindow = def.MedianWindow
	}
	if params.TransitionThreshold <= 0 {
		params.TransitionThreshold = def.TransitionThreshold
	}
	if params.RejectionScale <= 0 {
		params.RejectionScale = def.RejectionScale
	}
	if params.MaxConsecutiveRejections < 0 {
		params.MaxConsecutiveRejections = 0
	}
	if params.TrackLength <= 0 {
		params.TrackLength = def.TrackLength
	}
	return &PitchTrackSmoother{
		params: params,
		raw:    make([]float64, 0, params.MedianWindow),
		track:  make([]PitchEstimate, 0, params.TrackLength),
	}
}

// Process smooths one estimate
func (s *PitchTrackSmoother) Process(est PitchEstimate) PitchEstimate {
	if !est.Voiced() {
		return est
	}

	if len(s.raw) == s.params.MedianWindow {
		copy(s.raw, s.raw[1:])
		s.raw = s.raw[:len(s.raw)-1]
	}
	s.raw = append(s.raw, est.FrequencyHz)
	median := common.Median(s.raw)

	if len(s.track) > 0 {
		last := s.track[len(s.track)-1]
		if math.Abs(median-last.FrequencyHz) > s.params.TransitionThreshold {
			s.rejections++
			limit := s.params.MaxConsecutiveRejections
			if limit == 0 || s.rejections < limit {
				return PitchEstimate{
					FrequencyHz: last.FrequencyHz,
					Confidence:  est.Confidence * s.params.RejectionScale,
					Timestamp:   est.Timestamp,
				}
			}
		}
	}

	s.rejections = 0
	smoothed := PitchEstimate{
		FrequencyHz: median,
		Confidence:  est.Confidence,
		Timestamp:   est.Timestamp,
	}
	if len(s.track) == s.params.TrackLength {
		copy(s.track, s.track[1:])
		s.track = s.track[:len(s.track)-1]
	}
	s.track = append(s.track, smoothed)
	return smoothed
}

// Track returns a copy of the accepted estimates, oldest first
func (s *PitchTrackSmoother) Track() []PitchEstimate {
	out := make([]PitchEstimate, len(s.track))
	copy(out, s.track)
	return out
}

// Reset clears all history
func (s *PitchTrackSmoother) Reset() {
	s.raw = s.raw[:0]
	s.track = s.track[:0]
	s.rejections = 0
}
