package filters

import (
	"math"
	"testing"
)

func tone(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestDecimationFactor(t *testing.T) {
	tests := []struct {
		sampleRate int
		maxFreq    float64
		want       int
	}{
		{48000, 4000, 4},
		{44100, 4000, 4},
		{22050, 4000, 2},
		{16000, 4000, 1},
		{8000, 4000, 1},
	}
	for _, tt := range tests {
		if got := DecimationFactor(tt.sampleRate, tt.maxFreq); got != tt.want {
			t.Errorf("DecimationFactor(%d, %g) = %d, want %d", tt.sampleRate, tt.maxFreq, got, tt.want)
		}
	}
}

func TestDecimatorPassesLowBand(t *testing.T) {
	const sr = 48000
	d := NewDecimator(4)
	out := d.ProcessFrame(tone(1000, sr, 4800))
	if len(out) != 1200 {
		t.Fatalf("len = %d, want 1200", len(out))
	}

	// away from the zero-padded edges output k equals input 4k
	for k := 50; k < len(out)-50; k++ {
		want := math.Sin(2 * math.Pi * 1000 * float64(4*k) / sr)
		if math.Abs(out[k]-want) > 0.02 {
			t.Fatalf("out[%d] = %g, want %g", k, out[k], want)
		}
	}
}

func TestDecimatorRejectsAliases(t *testing.T) {
	const sr = 48000
	out := NewDecimator(4).ProcessFrame(tone(15000, sr, 4800))

	sum := 0.0
	for _, v := range out[50 : len(out)-50] {
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(out)-100))
	if rms > 0.01 {
		t.Errorf("15 kHz leaked through with RMS %g", rms)
	}
}

func TestDecimatorUnitFactorCopies(t *testing.T) {
	in := []float64{1, 2, 3}
	d := NewDecimator(1)
	out := d.ProcessFrame(in)
	out[0] = 9
	if d.Factor() != 1 || in[0] != 1 || out[1] != 2 || len(out) != 3 {
		t.Errorf("factor %d, out %v, in %v", d.Factor(), out, in)
	}
}
