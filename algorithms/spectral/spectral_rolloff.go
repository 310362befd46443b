package spectral

// SpectralRolloff finds the frequency below which a fixed share of the
// spectral energy lies
type SpectralRolloff struct {
	sampleRate int
	threshold  float64
	freqBins   []float64
}

// NewSpectralRolloff creates a rolloff calculator. threshold is the energy
// share, typically 0.85.
func NewSpectralRolloff(sampleRate int, threshold float64) *SpectralRolloff {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	return &SpectralRolloff{
		sampleRate: sampleRate,
		threshold:  threshold,
	}
}

// Compute returns the rolloff frequency in Hz of a one-sided magnitude spectrum
func (sr *SpectralRolloff) Compute(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return 0.0
	}
	if len(sr.freqBins) != len(spectrum) {
		sr.freqBins = binFrequencies(len(spectrum), sr.sampleRate)
	}

	totalEnergy := 0.0
	for _, mag := range spectrum {
		totalEnergy += mag * mag
	}
	if totalEnergy == 0 {
		return 0
	}

	target := sr.threshold * totalEnergy
	cumulative := 0.0
	for i, mag := range spectrum {
		cumulative += mag * mag
		if cumulative >= target {
			return sr.freqBins[i]
		}
	}
	return sr.freqBins[len(sr.freqBins)-1]
}
