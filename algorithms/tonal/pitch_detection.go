package tonal

import (
	"math"
	"time"

	"github.com/RyanBlaney/sonido-voz/algorithms/common"
	"github.com/RyanBlaney/sonido-voz/algorithms/spectral"
)

// PitchEstimate is a single fundamental-frequency estimate.
// A zero FrequencyHz means no pitch was found.
type PitchEstimate struct {
	FrequencyHz float64       `json:"frequency_hz"`
	Confidence  float64       `json:"confidence"` // 0-1
	Timestamp   time.Duration `json:"timestamp"`
}

// Voiced reports whether the estimate carries a pitch
func (p PitchEstimate) Voiced() bool {
	return p.FrequencyHz > 0
}

// AutocorrelationEstimator is the low-latency pitch path.
//
// The frame is made zero-mean and scaled to unit RMS, then its
// autocorrelation r[lag] = Σ x[i]·x[i+lag] is searched for the strongest
// local maximum among lags corresponding to [minFreq, maxFreq]. The winning
// lag is refined by parabolic interpolation. Frequency is sampleRate/lag and
// confidence is r[lag]/frameLength, which for a unit-RMS frame is the
// correlation normalized by the lag-0 energy.
//
// References:
//   - Rabiner, L.R. (1977). "On the use of autocorrelation analysis for pitch detection"
//   - Boersma, P. (1993). "Accurate short-term analysis of the fundamental frequency"
//
// The estimator is stateless and safe for concurrent use.
type AutocorrelationEstimator struct {
	sampleRate int
	minFreq    float64
	maxFreq    float64
	silenceRMS float64

	fft *spectral.FFT
}

// NewAutocorrelationEstimator creates an estimator searching [minFreq, maxFreq] Hz
func NewAutocorrelationEstimator(sampleRate int, minFreq, maxFreq float64) *AutocorrelationEstimator {
	if minFreq <= 0 {
		minFreq = 50
	}
	if maxFreq <= minFreq {
		maxFreq = 1000
	}
	return &AutocorrelationEstimator{
		sampleRate: sampleRate,
		minFreq:    minFreq,
		maxFreq:    maxFreq,
		silenceRMS: 1e-6,
		fft:        spectral.NewFFT(),
	}
}

// Estimate returns the pitch of frame. Silent frames, frames shorter than two
// periods of the highest frequency, and frames without a periodic peak yield
// a zero estimate.
func (e *AutocorrelationEstimator) Estimate(frame []float64) PitchEstimate {
	result, _ := e.EstimateWithPeak(frame)
	return result
}

// EstimateWithPeak is Estimate plus the interpolated period in samples, which
// cycle-level analyses (jitter) need at full resolution
func (e *AutocorrelationEstimator) EstimateWithPeak(frame []float64) (PitchEstimate, float64) {
	n := len(frame)
	minLag := max(1, int(math.Floor(float64(e.sampleRate)/e.maxFreq)))
	maxLag := min(n-2, int(math.Ceil(float64(e.sampleRate)/e.minFreq)))
	if maxLag <= minLag {
		return PitchEstimate{}, 0
	}

	x := common.RemoveDC(frame)
	rms := common.RMS(x)
	if rms < e.silenceRMS {
		return PitchEstimate{}, 0
	}
	for i := range x {
		x[i] /= rms
	}

	r := e.fft.Autocorrelation(x, maxLag+1)

	best := -1
	for lag := minLag; lag <= maxLag; lag++ {
		if r[lag] <= r[lag-1] || r[lag] < r[lag+1] {
			continue
		}
		if best < 0 || r[lag] > r[best] {
			best = lag
		}
	}
	if best < 0 || r[best] <= 0 {
		return PitchEstimate{}, 0
	}

	period, peak := common.ParabolicPeak(r, best)
	if period <= 0 {
		return PitchEstimate{}, 0
	}

	return PitchEstimate{
		FrequencyHz: float64(e.sampleRate) / period,
		Confidence:  common.Clamp(peak/float64(n), 0, 1),
	}, period
}

// SampleRate returns the configured sample rate
func (e *AutocorrelationEstimator) SampleRate() int {
	return e.sampleRate
}
