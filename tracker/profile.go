package tracker

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-voz/algorithms/common"
	"github.com/RyanBlaney/sonido-voz/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voz/config"
	"github.com/RyanBlaney/sonido-voz/logging"
)

// ErrInsufficientVoicedAudio is returned when a calibration recording holds
// too little confident pitch to build a profile
var ErrInsufficientVoicedAudio = errors.New("insufficient voiced audio for profile")

const (
	// confidence that maps to a multiplier of 1
	referenceConfidence = 0.85
	// share of the inner percentile spread added beyond P10 and P90
	rangeExtension = 0.25
)

// UserVoiceProfile describes the comfortable range of one speaker or singer.
// A profile is immutable; recalibration produces a new one.
type UserVoiceProfile struct {
	MinFrequencyHz       float64   `json:"min_frequency_hz" yaml:"min_frequency_hz"`
	MaxFrequencyHz       float64   `json:"max_frequency_hz" yaml:"max_frequency_hz"`
	AverageFrequencyHz   float64   `json:"average_frequency_hz" yaml:"average_frequency_hz"`
	ConfidenceMultiplier float64   `json:"confidence_multiplier" yaml:"confidence_multiplier"`
	VoicedSeconds        float64   `json:"voiced_seconds" yaml:"voiced_seconds"`
	CreatedAt            time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks the profile is usable by a RangeAdapter
func (p *UserVoiceProfile) Validate() error {
	if p.MinFrequencyHz <= 0 || p.MaxFrequencyHz <= p.MinFrequencyHz {
		return fmt.Errorf("profile range [%g, %g] is invalid", p.MinFrequencyHz, p.MaxFrequencyHz)
	}
	if p.ConfidenceMultiplier <= 0 {
		return fmt.Errorf("profile confidence multiplier %g must be positive", p.ConfidenceMultiplier)
	}
	return nil
}

// CreateUserProfile runs the fast pitch path over a recording of the user's
// voice and derives their range. Only frames with confidence above
// cfg.Profile.MinConfidence count, and together they must cover
// cfg.Profile.CalibrationSeconds (to within one hop).
//
// Min is P10 - 0.25*(P50-P10) and max is P90 + 0.25*(P90-P50), so each
// bound moves outward by a quarter of its distance to the median. A min that
// would fall to zero or below stays at P10. The average is the median.
func CreateUserProfile(samples []float64, sampleRate int, cfg *config.Config) (*UserVoiceProfile, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.WithFields(logging.Fields{
		"component":   "profile_calibration",
		"sample_rate": sampleRate,
		"samples":     len(samples),
	})

	window, hop := cfg.WindowSize, cfg.HopSize
	if sampleRate <= 0 || window <= 0 || hop <= 0 {
		return nil, fmt.Errorf("invalid analysis geometry: rate %d, window %d, hop %d", sampleRate, window, hop)
	}

	estimator := tonal.NewAutocorrelationEstimator(sampleRate, cfg.Pitch.MinFrequency, cfg.Pitch.MaxFrequency)

	var frequencies, confidences []float64
	for start := 0; start+window <= len(samples); start += hop {
		est := estimator.Estimate(samples[start : start+window])
		if est.Voiced() && est.Confidence > cfg.Profile.MinConfidence {
			frequencies = append(frequencies, est.FrequencyHz)
			confidences = append(confidences, est.Confidence)
		}
	}

	hopSeconds := float64(hop) / float64(sampleRate)
	voiced := float64(len(frequencies)) * hopSeconds
	if voiced+hopSeconds < cfg.Profile.CalibrationSeconds {
		return nil, fmt.Errorf("%.2fs voiced of %.2fs required: %w",
			voiced, cfg.Profile.CalibrationSeconds, ErrInsufficientVoicedAudio)
	}

	p10 := common.Percentile(frequencies, 0.10)
	p50 := common.Percentile(frequencies, 0.50)
	p90 := common.Percentile(frequencies, 0.90)

	profile := &UserVoiceProfile{
		MinFrequencyHz:       p10 - rangeExtension*(p50-p10),
		MaxFrequencyHz:       p90 + rangeExtension*(p90-p50),
		AverageFrequencyHz:   p50,
		ConfidenceMultiplier: common.Clamp(common.Mean(confidences)/referenceConfidence, 0.8, 1.2),
		VoicedSeconds:        voiced,
		CreatedAt:            time.Now(),
	}
	if profile.MinFrequencyHz <= 0 {
		profile.MinFrequencyHz = p10
	}

	logger.Info("User profile created", logging.Fields{
		"min_hz":     profile.MinFrequencyHz,
		"max_hz":     profile.MaxFrequencyHz,
		"average_hz": profile.AverageFrequencyHz,
		"multiplier": profile.ConfidenceMultiplier,
		"voiced_sec": voiced,
	})
	return profile, nil
}

// RangeAdapter folds estimates into the user's range by one octave and
// rescales their confidence. Without a profile estimates pass through.
// The profile may be swapped while frames are being adapted.
type RangeAdapter struct {
	profile atomic.Pointer[UserVoiceProfile]
}

// NewRangeAdapter creates an adapter; profile may be nil
func NewRangeAdapter(profile *UserVoiceProfile) *RangeAdapter {
	a := &RangeAdapter{}
	a.profile.Store(profile)
	return a
}

// SetProfile replaces the active profile; nil disables adaptation
func (a *RangeAdapter) SetProfile(profile *UserVoiceProfile) {
	a.profile.Store(profile)
}

// Profile returns the active profile or nil
func (a *RangeAdapter) Profile() *UserVoiceProfile {
	return a.profile.Load()
}

// Adapt applies the profile to est
func (a *RangeAdapter) Adapt(est tonal.PitchEstimate) tonal.PitchEstimate {
	p := a.profile.Load()
	if p == nil || !est.Voiced() {
		return est
	}

	switch {
	case est.FrequencyHz < p.MinFrequencyHz:
		est.FrequencyHz *= 2
	case est.FrequencyHz > p.MaxFrequencyHz:
		est.FrequencyHz /= 2
	}
	est.Confidence = common.Clamp(est.Confidence*p.ConfidenceMultiplier, 0, 1)
	return est
}
