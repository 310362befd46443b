package filters

import (
	"math"
)

// Decimator low-pass filters a frame and keeps every factor-th sample.
//
// The anti-aliasing filter is a linear-phase windowed-sinc FIR (Hamming
// window, 16 taps per unit of factor plus one) with its cutoff at 90% of the
// new Nyquist frequency. Frames are filtered independently with zero
// padding at the edges and the filter delay removed, so output sample k
// lines up with input sample k*factor.
//
// References:
//   - A.V. Oppenheim, R.W. Schafer, "Discrete-Time Signal Processing",
//     3rd ed., Section 4.6 (downsampling) and 7.5 (window design)
type Decimator struct {
	factor int
	taps   []float64
}

// NewDecimator creates a decimator. Factors below 2 pass frames through.
func NewDecimator(factor int) *Decimator {
	if factor < 2 {
		return &Decimator{factor: 1}
	}

	n := 16*factor + 1
	cutoff := 0.45 / float64(factor) // cycles per input sample
	centre := float64(n-1) / 2

	taps := make([]float64, n)
	sum := 0.0
	for i := range taps {
		x := float64(i) - centre
		sinc := 2 * cutoff
		if x != 0 {
			sinc = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}
		hamming := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		taps[i] = sinc * hamming
		sum += taps[i]
	}
	for i := range taps {
		taps[i] /= sum // unity gain at DC
	}

	return &Decimator{factor: factor, taps: taps}
}

// DecimationFactor returns the largest integer factor that keeps the output
// rate at or above 2*(maxFrequency+1000) Hz, the band LPC formant analysis
// needs. It is at least 1.
func DecimationFactor(sampleRate int, maxFrequency float64) int {
	target := 2 * (maxFrequency + 1000)
	if target <= 0 {
		return 1
	}
	return max(1, int(float64(sampleRate)/target))
}

// Factor returns the decimation factor
func (d *Decimator) Factor() int {
	return d.factor
}

// ProcessFrame returns the filtered and downsampled frame
func (d *Decimator) ProcessFrame(frame []float64) []float64 {
	if d.factor == 1 {
		out := make([]float64, len(frame))
		copy(out, frame)
		return out
	}

	half := (len(d.taps) - 1) / 2
	out := make([]float64, (len(frame)+d.factor-1)/d.factor)
	for k := range out {
		centre := k * d.factor
		acc := 0.0
		for j, h := range d.taps {
			idx := centre + j - half
			if idx < 0 || idx >= len(frame) {
				continue
			}
			acc += h * frame[idx]
		}
		out[k] = acc
	}
	return out
}
