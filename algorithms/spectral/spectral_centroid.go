package spectral

// SpectralCentroid computes the energy-weighted mean frequency of a
// spectrum, in Hz: sum(f*|X|^2) / sum(|X|^2). Brighter voices have higher
// centroids.
type SpectralCentroid struct {
	sampleRate int
	freqBins   []float64 // cached for the last spectrum length
}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{
		sampleRate: sampleRate,
	}
}

// Compute calculates the centroid of a one-sided magnitude spectrum
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return 0.0
	}
	if len(sc.freqBins) != len(spectrum) {
		sc.freqBins = binFrequencies(len(spectrum), sc.sampleRate)
	}

	numerator := 0.0
	denominator := 0.0
	for i, mag := range spectrum {
		energy := mag * mag
		numerator += sc.freqBins[i] * energy
		denominator += energy
	}

	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
