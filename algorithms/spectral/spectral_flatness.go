package spectral

import (
	"math"
)

// SpectralFlatness computes spectral flatness (Wiener entropy): the ratio of
// the geometric to the arithmetic mean of the power spectrum.
// Values near 0 mean a tonal, periodic sound; values near 1 mean noise.
type SpectralFlatness struct {
	floor float64 // power floor to avoid log(0)
}

// NewSpectralFlatness creates a new spectral flatness calculator
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{
		floor: 1e-20,
	}
}

// Compute returns the flatness of a one-sided magnitude spectrum, in [0, 1].
// An all-zero spectrum has flatness 0.
func (sf *SpectralFlatness) Compute(magnitudeSpectrum []float64) float64 {
	if len(magnitudeSpectrum) == 0 {
		return 0.0
	}

	logSum := 0.0
	arithmetic := 0.0
	for _, mag := range magnitudeSpectrum {
		power := max(mag*mag, sf.floor)
		logSum += math.Log(power)
		arithmetic += power
	}

	n := float64(len(magnitudeSpectrum))
	arithmetic /= n
	if arithmetic <= sf.floor {
		return 0.0
	}

	flatness := math.Exp(logSum/n) / arithmetic
	return min(flatness, 1.0)
}

// ComputeInDB returns flatness in decibels (0 dB = white noise)
func (sf *SpectralFlatness) ComputeInDB(magnitudeSpectrum []float64) float64 {
	flatness := sf.Compute(magnitudeSpectrum)
	if flatness <= 0 {
		return -200.0
	}
	return 10.0 * math.Log10(flatness)
}
