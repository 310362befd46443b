package spectral

import (
	"math"
)

// HzToMel converts frequency in Hz to the mel scale (O'Shaughnessy)
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts a mel value back to Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelFilterBank is a set of triangular filters equally spaced on the mel
// scale, each spanning fftSize/2+1 one-sided bins
type MelFilterBank struct {
	filters [][]float64
	fftSize int
}

// NewMelFilterBank builds numFilters triangles between lowFreq and highFreq
func NewMelFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) *MelFilterBank {
	bank := &MelFilterBank{fftSize: fftSize}
	if numFilters <= 0 || fftSize <= 0 {
		return bank
	}

	lowMel := HzToMel(lowFreq)
	melStep := (HzToMel(highFreq) - lowMel) / float64(numFilters+1)

	// edge bins: left, centre, right of each triangle share neighbours
	edges := make([]int, numFilters+2)
	for i := range edges {
		hz := MelToHz(lowMel + float64(i)*melStep)
		edges[i] = min(int(math.Floor(float64(fftSize+1)*hz/float64(sampleRate)+0.5)), fftSize/2)
	}

	numBins := fftSize/2 + 1
	bank.filters = make([][]float64, numFilters)
	for m := range numFilters {
		filter := make([]float64, numBins)
		left, centre, right := edges[m], edges[m+1], edges[m+2]

		for k := left; k < centre; k++ {
			filter[k] = float64(k-left) / float64(centre-left)
		}
		for k := centre; k < right; k++ {
			filter[k] = float64(right-k) / float64(right-centre)
		}
		bank.filters[m] = filter
	}
	return bank
}

// Len returns the number of filters
func (b *MelFilterBank) Len() int {
	return len(b.filters)
}

// Apply sums the power spectrum under each filter
func (b *MelFilterBank) Apply(powerSpectrum []float64) []float64 {
	energies := make([]float64, len(b.filters))
	for i, filter := range b.filters {
		sum := 0.0
		for k := 0; k < len(filter) && k < len(powerSpectrum); k++ {
			sum += powerSpectrum[k] * filter[k]
		}
		energies[i] = sum
	}
	return energies
}
