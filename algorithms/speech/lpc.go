package speech

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/sonido-voz/algorithms/spectral"
)

// ErrDegenerateLPC is returned when the Levinson-Durbin recursion cannot
// produce a stable predictor (silent or numerically singular input)
var ErrDegenerateLPC = errors.New("degenerate LPC system")

// LPCAnalyzer performs Linear Predictive Coding analysis.
// LPC models the vocal tract as an all-pole filter: each sample is predicted
// as x̂[n] = Σ a_k·x[n-k], and the inverse filter is A(z) = 1 - Σ a_k·z^-k.
// Its poles are the vocal tract resonances (formants).
//
// References:
//   - J. Makhoul, "Linear Prediction: A Tutorial Review", Proc. IEEE, 1975
//   - L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech Signals", Ch. 8
type LPCAnalyzer struct {
	order int
	fft   *spectral.FFT
}

// LPCResult contains LPC analysis results
type LPCResult struct {
	Coefficients    []float64 `json:"coefficients"`     // a1..ap
	ReflectionCoeff []float64 `json:"reflection_coeff"` // k1..kp
	Gain            float64   `json:"gain"`             // sqrt of the final prediction error
	ResidualEnergy  float64   `json:"residual_energy"`
	Order           int       `json:"order"`
}

// NewLPCAnalyzer creates a new LPC analyzer. A non-positive order picks the
// rule of thumb 2 + sampleRate/1000.
func NewLPCAnalyzer(sampleRate int, order int) *LPCAnalyzer {
	if order <= 0 {
		order = 2 + sampleRate/1000
	}
	return &LPCAnalyzer{
		order: order,
		fft:   spectral.NewFFT(),
	}
}

// Order returns the predictor order
func (lpc *LPCAnalyzer) Order() int {
	return lpc.order
}

// Analyze fits the predictor to signal (autocorrelation method)
func (lpc *LPCAnalyzer) Analyze(signal []float64) (*LPCResult, error) {
	if len(signal) < lpc.order*2 {
		return nil, fmt.Errorf("signal too short for LPC analysis of order %d", lpc.order)
	}

	r := lpc.fft.Autocorrelation(signal, lpc.order)
	coeffs, reflection, residual, err := levinsonDurbin(r, lpc.order)
	if err != nil {
		return nil, fmt.Errorf("levinson-durbin (order %d): %w", lpc.order, err)
	}

	return &LPCResult{
		Coefficients:    coeffs,
		ReflectionCoeff: reflection,
		Gain:            math.Sqrt(residual),
		ResidualEnergy:  residual,
		Order:           lpc.order,
	}, nil
}

// levinsonDurbin solves the Toeplitz normal equations for the order-p
// predictor given autocorrelation r[0..p]. A prediction error that reaches
// zero or goes negative means the system is degenerate.
func levinsonDurbin(r []float64, p int) ([]float64, []float64, float64, error) {
	if len(r) < p+1 {
		return nil, nil, 0, fmt.Errorf("need %d autocorrelation lags, have %d: %w", p+1, len(r), ErrDegenerateLPC)
	}
	if r[0] <= 0 {
		return nil, nil, 0, fmt.Errorf("zero energy: %w", ErrDegenerateLPC)
	}

	a := make([]float64, p+1) // a[0] unused
	prev := make([]float64, p+1)
	k := make([]float64, p)
	e := r[0]

	for i := 1; i <= p; i++ {
		acc := r[i]
		for j := 1; j < i; j++ {
			acc -= a[j] * r[i-j]
		}
		ki := acc / e
		k[i-1] = ki

		copy(prev, a)
		a[i] = ki
		for j := 1; j < i; j++ {
			a[j] = prev[j] - ki*prev[i-j]
		}

		e *= 1 - ki*ki
		if e <= 0 || math.IsNaN(e) {
			return nil, nil, 0, fmt.Errorf("prediction error %g at step %d: %w", e, i, ErrDegenerateLPC)
		}
	}

	return a[1:], k, e, nil
}

// InverseFilterResponse evaluates A(e^jω) = 1 - Σ a_k·e^(-jωk)
func InverseFilterResponse(coeffs []float64, omega float64) complex128 {
	response := complex(1, 0)
	for i, c := range coeffs {
		response -= complex(c, 0) * cmplx.Exp(complex(0, -omega*float64(i+1)))
	}
	return response
}

// Envelope returns the all-pole envelope 1/|A(e^jω)| at angular frequency omega
func Envelope(coeffs []float64, omega float64) float64 {
	mag := cmplx.Abs(InverseFilterResponse(coeffs, omega))
	if mag == 0 {
		return 0
	}
	return 1.0 / mag
}

// SpectralEnvelope samples the envelope at the nfft/2+1 bins of an nfft-point FFT
func SpectralEnvelope(coeffs []float64, nfft int) []float64 {
	if nfft <= 0 {
		nfft = 512
	}
	envelope := make([]float64, nfft/2+1)
	for k := range envelope {
		envelope[k] = Envelope(coeffs, 2*math.Pi*float64(k)/float64(nfft))
	}
	return envelope
}
