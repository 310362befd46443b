package temporal

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func sine(freq, amp float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func noise(seed uint64, amp float64, n int) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * (2*rng.Float64() - 1)
	}
	return out
}

func TestGateHangover(t *testing.T) {
	const hangover = 5
	g := NewVoiceActivityGate(0.01, hangover)
	loud := sine(220, 0.5, 48000, 2048)
	silent := make([]float64, 2048)

	if !g.Process(loud).IsActive {
		t.Fatal("loud frame not active")
	}
	// the loud frame plus hangover-1 silent frames stay active
	for i := 1; i < hangover; i++ {
		if st := g.Process(silent); !st.IsActive {
			t.Fatalf("silent frame %d inactive, counter=%d", i, st.HangoverCounter)
		}
	}
	if g.Process(silent).IsActive {
		t.Errorf("frame %d still active", hangover+1)
	}
}

func TestGateSilence(t *testing.T) {
	g := NewVoiceActivityGate(0.01, 5)
	st := g.Process(make([]float64, 2048))
	if st.IsActive || st.Energy != 0 || st.ZCR != 0 {
		t.Errorf("silence state = %+v", st)
	}
}

func TestGateReportsLevelInDBFS(t *testing.T) {
	tests := []struct {
		name  string
		frame []float64
		want  float64
	}{
		{"silence at floor", make([]float64, 2048), -100},
		// RMS of a 0.5 sine is 0.5/sqrt(2)
		{"half-scale sine", sine(250, 0.5, 48000, 48000), 20 * math.Log10(0.5/math.Sqrt2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewVoiceActivityGate(0.01, 5).Process(tt.frame)
			if math.Abs(st.EnergyDB-tt.want) > 0.05 {
				t.Errorf("energy = %.2f dBFS, want %.2f", st.EnergyDB, tt.want)
			}
		})
	}
}

func TestGateRespectsNoiseFloor(t *testing.T) {
	g := NewVoiceActivityGate(0.01, 1)
	g.SetNoiseFloor(0.2)
	if g.Process(sine(220, 0.1, 48000, 2048)).IsActive {
		t.Error("frame below noise floor was active")
	}
	if !g.Process(sine(220, 0.5, 48000, 2048)).IsActive {
		t.Error("frame above noise floor was inactive")
	}
}

func TestCalibrateNoiseFloorDeterministic(t *testing.T) {
	ambient := noise(7, 0.02, 48000)

	first, err := NewVoiceActivityGate(0.01, 5).CalibrateNoiseFloor(ambient, 48000)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewVoiceActivityGate(0.01, 5).CalibrateNoiseFloor(ambient, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("calibration not deterministic: %g vs %g", first, second)
	}

	// uniform noise of amplitude a has RMS a/sqrt(3)
	want := 1.5 * 0.02 / math.Sqrt(3)
	if math.Abs(first-want) > 0.1*want {
		t.Errorf("noise floor = %g, want ~%g", first, want)
	}
}

func TestCalibrateNoiseFloorTooShort(t *testing.T) {
	g := NewVoiceActivityGate(0.01, 5)
	_, err := g.CalibrateNoiseFloor(make([]float64, 100), 48000)
	if !errors.Is(err, ErrCalibrationTooShort) {
		t.Errorf("err = %v, want ErrCalibrationTooShort", err)
	}
}

func TestZeroCrossingRate(t *testing.T) {
	tests := []struct {
		name  string
		frame []float64
		want  float64
	}{
		{"empty", nil, 0},
		{"alternating", []float64{1, -1, 1, -1, 1}, 1},
		{"constant", []float64{1, 1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ZeroCrossingRate(tt.frame); got != tt.want {
				t.Errorf("ZCR = %g, want %g", got, tt.want)
			}
		})
	}
}
