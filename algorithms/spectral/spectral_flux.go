package spectral

import (
	"math"
)

// SpectralFlux measures how much the spectrum grew since the previous frame:
// the L2 norm of the positive bin-wise magnitude differences.
//
// It keeps the previous spectrum, so one instance serves one stream.
type SpectralFlux struct {
	previous []float64
}

// NewSpectralFlux creates a new spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{}
}

// Compute returns the flux of spectrum against the previous call and stores
// spectrum for the next one. The first frame, and any frame whose length
// differs from the previous one, yields 0.
func (sf *SpectralFlux) Compute(spectrum []float64) float64 {
	flux := 0.0
	if len(sf.previous) == len(spectrum) {
		sum := 0.0
		for i, mag := range spectrum {
			if diff := mag - sf.previous[i]; diff > 0 {
				sum += diff * diff
			}
		}
		flux = math.Sqrt(sum)
	}

	sf.previous = append(sf.previous[:0], spectrum...)
	return flux
}

// Reset forgets the previous spectrum
func (sf *SpectralFlux) Reset() {
	sf.previous = sf.previous[:0]
}
