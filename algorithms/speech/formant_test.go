package speech

import (
	"fmt"
	"math"
	"testing"
)

type resonance struct{ freq, bw float64 }

// synthVowel drives a cascade of two-pole resonators with a glottal impulse train
func synthVowel(sampleRate, n int, f0 float64, formants []resonance) []float64 {
	out := make([]float64, n)
	period := int(float64(sampleRate) / f0)
	for i := 0; i < n; i += period {
		out[i] = 1
	}
	for _, r := range formants {
		radius := math.Exp(-math.Pi * r.bw / float64(sampleRate))
		a1 := 2 * radius * math.Cos(2*math.Pi*r.freq/float64(sampleRate))
		a2 := -radius * radius
		var y1, y2 float64
		for i, x := range out {
			y := x + a1*y1 + a2*y2
			out[i] = y
			y2, y1 = y1, y
		}
	}
	peak := 0.0
	for _, v := range out {
		peak = max(peak, math.Abs(v))
	}
	for i := range out {
		out[i] *= 0.5 / peak
	}
	return out
}

func checkFormantOrdering(t *testing.T, set FormantSet) {
	t.Helper()
	if len(set.Formants) > 5 {
		t.Errorf("%d formants, want <= 5", len(set.Formants))
	}
	for i, f := range set.Formants {
		if f.FrequencyHz < 200 || f.FrequencyHz > 4000 {
			t.Errorf("F%d = %g Hz out of range", i+1, f.FrequencyHz)
		}
		if f.BandwidthHz < 30 || f.BandwidthHz > 1000 {
			t.Errorf("B%d = %g Hz out of range", i+1, f.BandwidthHz)
		}
		if i > 0 && f.FrequencyHz <= set.Formants[i-1].FrequencyHz {
			t.Errorf("F%d = %g not above F%d = %g", i+1, f.FrequencyHz, i, set.Formants[i-1].FrequencyHz)
		}
	}
	if set.Confidence < 0 || set.Confidence > 1 {
		t.Errorf("confidence %g out of [0,1]", set.Confidence)
	}
}

func TestFormantTrackerFindsResonances(t *testing.T) {
	targets := []resonance{{700, 80}, {1200, 100}, {2500, 150}, {3300, 200}}

	tests := []struct {
		sampleRate int
		frame      int // about 43 ms at every rate
	}{
		{16000, 2048},
		{44100, 2048},
		{48000, 2048},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dHz", tt.sampleRate), func(t *testing.T) {
			hop := tt.frame / 4
			signal := synthVowel(tt.sampleRate, tt.frame+12*hop, 120, targets)

			ft := NewFormantTracker(tt.sampleRate, DefaultFormantParams())
			var set FormantSet
			for start := 0; start+tt.frame <= len(signal); start += hop {
				set = ft.Track(signal[start : start+tt.frame])
				checkFormantOrdering(t, set)
			}

			for _, target := range targets {
				found := false
				for _, f := range set.Formants {
					if math.Abs(f.FrequencyHz-target.freq) < target.freq*0.08 {
						found = true
					}
				}
				if !found {
					t.Errorf("no formant near %g Hz in %+v", target.freq, set.Formants)
				}
			}
			if set.Confidence <= 0 {
				t.Errorf("confidence = %g, want > 0", set.Confidence)
			}
			if set.Vowel == VowelMixed || set.Vowel == VowelNone {
				t.Errorf("vowel = %q, want a reference vowel", set.Vowel)
			}
		})
	}
}

func TestFormantTrackerSilence(t *testing.T) {
	ft := NewFormantTracker(48000, DefaultFormantParams())
	set := ft.Track(make([]float64, 2048))
	if len(set.Formants) != 0 || set.Confidence != 0 || set.Vowel != VowelNone {
		t.Errorf("silent set = %+v, want empty", set)
	}
}

func TestFormantSmoothingResetsAfterSilence(t *testing.T) {
	const sr = 16000
	ft := NewFormantTracker(sr, DefaultFormantParams())
	low := synthVowel(sr, 2048, 150, []resonance{{400, 80}, {900, 100}})
	high := synthVowel(sr, 2048, 150, []resonance{{800, 80}, {1800, 100}})

	ft.Track(low)
	ft.Track(make([]float64, 2048))
	fresh := NewFormantTracker(sr, DefaultFormantParams()).Track(high)
	got := ft.Track(high)

	if len(got.Formants) != len(fresh.Formants) {
		t.Fatalf("after silence %d formants, fresh tracker %d", len(got.Formants), len(fresh.Formants))
	}
	for i := range got.Formants {
		if math.Abs(got.Formants[i].FrequencyHz-fresh.Formants[i].FrequencyHz) > 1e-6 {
			t.Errorf("F%d = %g, fresh %g: history leaked across silence", i+1,
				got.Formants[i].FrequencyHz, fresh.Formants[i].FrequencyHz)
		}
	}
}

func TestFormantConfidence(t *testing.T) {
	tests := []struct {
		name  string
		freqs []float64
		want  float64
	}{
		{"empty", nil, 0},
		{"canonical", []float64{500, 1500, 2500}, 1},
		{"one outside", []float64{1100, 1500}, 0.8},
		{"two outside", []float64{1100, 2600}, 0.64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formants := make([]Formant, len(tt.freqs))
			for i, f := range tt.freqs {
				formants[i] = Formant{FrequencyHz: f}
			}
			if got := formantConfidence(formants); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("confidence = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestClassifyVowel(t *testing.T) {
	tests := []struct {
		f1, f2 float64
		want   VowelShape
	}{
		{850, 1220, VowelAOpen},
		{320, 2750, VowelI},
		{340, 780, VowelU},
		{1500, 3500, VowelMixed},
		{0, 1200, VowelNone},
	}
	for _, tt := range tests {
		if got := ClassifyVowel(tt.f1, tt.f2); got != tt.want {
			t.Errorf("ClassifyVowel(%g, %g) = %q, want %q", tt.f1, tt.f2, got, tt.want)
		}
	}
}
