package spectral

import (
	"fmt"
	"math"
)

// MFCC computes Mel-Frequency Cepstral Coefficients from magnitude spectra:
// power spectrum, mel filter bank, log, DCT-II, optional sinusoidal liftering.
// The filter bank is built lazily for the first spectrum size seen and
// rebuilt if the size changes.
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	sampleRate      int
	lowFreq         float64
	highFreq        float64
	lifterCoeff     float64 // 0 disables liftering

	bank      *MelFilterBank
	dctMatrix [][]float64
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // default 13
	NumMelFilters   int     `json:"num_mel_filters"`  // default 26
	LowFreq         float64 `json:"low_freq"`         // default 0
	HighFreq        float64 `json:"high_freq"`        // default sampleRate/2
	LifterCoeff     float64 `json:"lifter_coeff"`     // default 22
}

// NewMFCC creates an MFCC computer with numCoefficients coefficients over
// numMelFilters bands spanning the full band
func NewMFCC(sampleRate, numCoefficients, numMelFilters int) *MFCC {
	return NewMFCCWithParams(sampleRate, MFCCParams{
		NumCoefficients: numCoefficients,
		NumMelFilters:   numMelFilters,
	})
}

// NewMFCCWithParams creates an MFCC computer; zero fields take defaults
func NewMFCCWithParams(sampleRate int, params MFCCParams) *MFCC {
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = 13
	}
	if params.NumMelFilters <= 0 {
		params.NumMelFilters = 26
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(sampleRate) / 2.0
	}
	if params.LifterCoeff < 0 {
		params.LifterCoeff = 0
	} else if params.LifterCoeff == 0 {
		params.LifterCoeff = 22.0
	}

	m := &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		sampleRate:      sampleRate,
		lowFreq:         params.LowFreq,
		highFreq:        params.HighFreq,
		lifterCoeff:     params.LifterCoeff,
	}
	m.dctMatrix = dctII(m.numCoefficients, m.numMelFilters)
	return m
}

// Compute returns the cepstral coefficients of a one-sided magnitude spectrum
func (m *MFCC) Compute(magnitudeSpectrum []float64) ([]float64, error) {
	if len(magnitudeSpectrum) < 2 {
		return nil, fmt.Errorf("magnitude spectrum too short: %d bins", len(magnitudeSpectrum))
	}

	fftSize := (len(magnitudeSpectrum) - 1) * 2
	if m.bank == nil || m.bank.fftSize != fftSize {
		m.bank = NewMelFilterBank(m.numMelFilters, fftSize, m.sampleRate, m.lowFreq, m.highFreq)
	}

	power := make([]float64, len(magnitudeSpectrum))
	for i, mag := range magnitudeSpectrum {
		power[i] = mag * mag
	}

	logMel := m.bank.Apply(power)
	for i, e := range logMel {
		logMel[i] = math.Log(max(e, 1e-10))
	}

	coeffs := make([]float64, m.numCoefficients)
	for k, row := range m.dctMatrix {
		sum := 0.0
		for n, w := range row {
			sum += logMel[n] * w
		}
		coeffs[k] = sum
	}

	if m.lifterCoeff > 0 {
		for i := 1; i < len(coeffs); i++ {
			coeffs[i] *= 1.0 + (m.lifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/m.lifterCoeff)
		}
	}
	return coeffs, nil
}

// dctII builds an orthonormal DCT-II matrix of size rows × cols
func dctII(rows, cols int) [][]float64 {
	matrix := make([][]float64, rows)
	for k := range rows {
		scale := math.Sqrt(2.0 / float64(cols))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(cols))
		}
		matrix[k] = make([]float64, cols)
		for n := range cols {
			matrix[k][n] = scale * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(cols))
		}
	}
	return matrix
}
