package filters

import (
	"fmt"
	"math"
)

// PreEmphasis implements a first-order pre-emphasis filter.
// Pre-emphasis compensates for the -6 dB/octave glottal roll-off of voiced
// speech so that linear prediction fits the vocal tract instead of the source.
//
// The filter implements the transfer function:
// H(z) = 1 - α*z^-1
//
// With the difference equation:
// y[n] = x[n] - α*x[n-1]
//
// References:
//   - L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech Signals",
//     Prentice-Hall, 1978, Chapter 4
type PreEmphasis struct {
	coefficient float64 // α
	lastSample  float64 // x[n-1]
}

// DefaultPreEmphasisCoefficient is the usual value for speech (ITU-T G.191)
const DefaultPreEmphasisCoefficient = 0.97

// NewPreEmphasis creates a pre-emphasis filter with coefficient α.
// Values outside (0, 1) fall back to the default.
func NewPreEmphasis(coefficient float64) *PreEmphasis {
	if coefficient <= 0 || coefficient >= 1 {
		coefficient = DefaultPreEmphasisCoefficient
	}
	return &PreEmphasis{coefficient: coefficient}
}

// Process filters a single sample
func (pe *PreEmphasis) Process(input float64) float64 {
	output := input - pe.coefficient*pe.lastSample
	pe.lastSample = input
	return output
}

// ProcessBuffer filters a buffer, carrying state across calls
func (pe *PreEmphasis) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = pe.Process(sample)
	}
	return output
}

// ProcessFrame filters an independent frame: state is reset first so the
// result depends only on the frame contents.
func (pe *PreEmphasis) ProcessFrame(frame []float64) []float64 {
	pe.Reset()
	return pe.ProcessBuffer(frame)
}

// Reset clears the filter's internal state.
// Call this when processing discontinuous audio segments.
func (pe *PreEmphasis) Reset() {
	pe.lastSample = 0.0
}

// SetCoefficient updates the pre-emphasis coefficient.
func (pe *PreEmphasis) SetCoefficient(coefficient float64) error {
	if coefficient <= 0.0 || coefficient >= 1.0 {
		return fmt.Errorf("coefficient must be between 0 and 1, got %f", coefficient)
	}
	pe.coefficient = coefficient
	return nil
}

// Coefficient returns α
func (pe *PreEmphasis) Coefficient() float64 {
	return pe.coefficient
}

// FrequencyResponse returns the magnitude of H(e^jw) at frequency.
// H(e^jw) = 1 - α*cos(w) + j*α*sin(w)
func (pe *PreEmphasis) FrequencyResponse(frequency float64, sampleRate int) float64 {
	w := 2.0 * math.Pi * frequency / float64(sampleRate)
	re := 1.0 - pe.coefficient*math.Cos(w)
	im := pe.coefficient * math.Sin(w)
	return math.Hypot(re, im)
}
