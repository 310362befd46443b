package tracker

import (
	"math"

	"github.com/RyanBlaney/sonido-voz/config"
)

const testRate = 16000

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.SampleRate = testRate
	return cfg
}

func tone(freq, amp float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

// sweep rises linearly from f0 to f1 over n samples
func sweep(f0, f1, amp float64, n int) []float64 {
	out := make([]float64, n)
	total := float64(n) / testRate
	for i := range out {
		t := float64(i) / testRate
		phase := 2 * math.Pi * (f0*t + (f1-f0)*t*t/(2*total))
		out[i] = amp * math.Sin(phase)
	}
	return out
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
