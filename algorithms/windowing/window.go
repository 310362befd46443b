package windowing

import (
	"fmt"
	"math"
	"sync"
)

// Type selects a window shape
type Type string

const (
	TypeHann    Type = "hann"
	TypeHamming Type = "hamming"
)

// Window applies a fixed-shape taper to frames of any length.
// Coefficients are generated once per frame length and cached, so a Window can
// be shared by analyzers that run concurrently.
type Window struct {
	kind      Type
	symmetric bool

	mu    sync.RWMutex
	cache map[int][]float64
}

// New creates a window of the given type. Symmetric windows divide by N-1
// (filter design), periodic ones by N (spectral analysis).
func New(kind Type, symmetric bool) (*Window, error) {
	switch kind {
	case TypeHann, TypeHamming:
	default:
		return nil, fmt.Errorf("unsupported window type %q", kind)
	}
	return &Window{
		kind:      kind,
		symmetric: symmetric,
		cache:     make(map[int][]float64),
	}, nil
}

// NewHann creates a periodic Hann window
func NewHann() *Window {
	w, _ := New(TypeHann, false)
	return w
}

// NewHamming creates a symmetric Hamming window
func NewHamming() *Window {
	w, _ := New(TypeHamming, true)
	return w
}

// Apply returns a windowed copy of signal
func (w *Window) Apply(signal []float64) []float64 {
	coeffs := w.Coefficients(len(signal))
	windowed := make([]float64, len(signal))
	for i := range signal {
		windowed[i] = signal[i] * coeffs[i]
	}
	return windowed
}

// Coefficients returns the (shared, read-only) coefficients for a frame of size n
func (w *Window) Coefficients(n int) []float64 {
	w.mu.RLock()
	coeffs, ok := w.cache[n]
	w.mu.RUnlock()
	if ok {
		return coeffs
	}

	coeffs = w.generate(n)

	w.mu.Lock()
	w.cache[n] = coeffs
	w.mu.Unlock()
	return coeffs
}

func (w *Window) generate(n int) []float64 {
	coeffs := make([]float64, n)
	if n == 1 {
		coeffs[0] = 1
		return coeffs
	}

	denominator := float64(n)
	if w.symmetric {
		denominator = float64(n - 1)
	}

	for i := range n {
		phase := 2 * math.Pi * float64(i) / denominator
		switch w.kind {
		case TypeHamming:
			coeffs[i] = 0.54 - 0.46*math.Cos(phase)
		default:
			coeffs[i] = 0.5 * (1.0 - math.Cos(phase))
		}
	}
	return coeffs
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.kind
}
