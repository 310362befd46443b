package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp for the real-valued frames used by the analyzers.
// It holds no state and is safe for concurrent use.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the full complex spectrum of x. go-dsp handles any length,
// power of two or not.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputeInverseReal computes the inverse FFT and keeps the real part
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	out := make([]float64, len(result))
	for i, v := range result {
		out[i] = real(v)
	}
	return out
}

// Magnitude returns |X[k]| for k = 0..n/2 (DC through Nyquist)
func (f *FFT) Magnitude(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	spectrum := f.Compute(x)
	bins := len(spectrum)/2 + 1
	mags := make([]float64, bins)
	for i := range bins {
		mags[i] = cmplx.Abs(spectrum[i])
	}
	return mags
}

// Autocorrelation returns r[lag] = Σ x[i]·x[i+lag] for lag = 0..maxLag.
// It goes through the power spectrum (Wiener-Khinchin) with zero padding to
// at least 2n, so the result equals the direct time-domain sum.
func (f *FFT) Autocorrelation(x []float64, maxLag int) []float64 {
	n := len(x)
	if n == 0 || maxLag < 0 {
		return []float64{}
	}
	maxLag = min(maxLag, n-1)

	size := 1
	for size < 2*n {
		size <<= 1
	}
	padded := make([]float64, size)
	copy(padded, x)

	spectrum := fft.FFTReal(padded)
	for i, v := range spectrum {
		re, im := real(v), imag(v)
		spectrum[i] = complex(re*re+im*im, 0)
	}

	return f.ComputeInverseReal(spectrum)[:maxLag+1]
}

// BinFrequency converts a (fractional) bin index of an n-point FFT to Hz
func BinFrequency(bin float64, n, sampleRate int) float64 {
	if n == 0 {
		return 0
	}
	return bin * float64(sampleRate) / float64(n)
}

// binFrequencies returns the centre frequency of each bin of a one-sided
// spectrum with numBins entries
func binFrequencies(numBins, sampleRate int) []float64 {
	freqs := make([]float64, numBins)
	if numBins < 2 {
		return freqs
	}
	for i := range numBins {
		freqs[i] = float64(i) * float64(sampleRate) / float64((numBins-1)*2)
	}
	return freqs
}
