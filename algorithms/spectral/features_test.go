package spectral

import (
	"math"
	"math/rand/v2"
	"testing"
)

func tone(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestAutocorrelationMatchesDirectSum(t *testing.T) {
	x := []float64{1, 2, -1, 0.5, 3}
	got := NewFFT().Autocorrelation(x, 4)
	for lag := 0; lag <= 4; lag++ {
		want := 0.0
		for i := 0; i+lag < len(x); i++ {
			want += x[i] * x[i+lag]
		}
		if math.Abs(got[lag]-want) > 1e-9 {
			t.Errorf("r[%d] = %g, want %g", lag, got[lag], want)
		}
	}
}

func TestExtractSineFeatures(t *testing.T) {
	const sr = 16000
	e := NewSpectralFeatureExtractor(DefaultFeatureParams(sr))
	f := e.Extract(tone(440, sr, 2048))

	if math.Abs(f.FundamentalHz-440) > 440*0.01 {
		t.Errorf("fundamental = %g, want ~440", f.FundamentalHz)
	}
	if math.Abs(f.SpectralCentroid-440) > 100 {
		t.Errorf("centroid = %g, want near 440", f.SpectralCentroid)
	}
	if f.SpectralRolloff < 400 || f.SpectralRolloff > 500 {
		t.Errorf("rolloff = %g, want 400..500", f.SpectralRolloff)
	}
	if f.SpectralFlux != 0 {
		t.Errorf("first-frame flux = %g, want 0", f.SpectralFlux)
	}
	if len(f.MFCC) != 13 {
		t.Errorf("len(MFCC) = %d, want 13", len(f.MFCC))
	}
	if f.Confidence < 0.9 {
		t.Errorf("tonal confidence = %g, want > 0.9", f.Confidence)
	}
}

func TestSpectralCentroidWeightsByEnergy(t *testing.T) {
	// bins at 0, 1000, 2000, 3000, 4000 Hz
	sc := NewSpectralCentroid(8000)
	got := sc.Compute([]float64{0, 1, 0, 2, 0})

	// (1000*1 + 3000*4) / 5; magnitude weighting would give 7000/3
	if want := 2600.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("centroid = %g, want %g", got, want)
	}
	if got := sc.Compute(make([]float64, 5)); got != 0 {
		t.Errorf("silent centroid = %g, want 0", got)
	}
}

func TestSpectralFluxTracksChange(t *testing.T) {
	const sr = 16000
	e := NewSpectralFeatureExtractor(DefaultFeatureParams(sr))
	frame := tone(300, sr, 1024)

	e.Extract(frame)
	if flux := e.Extract(frame).SpectralFlux; flux > 1e-9 {
		t.Errorf("identical frames flux = %g, want 0", flux)
	}
	if flux := e.Extract(tone(900, sr, 1024)).SpectralFlux; flux <= 0 {
		t.Errorf("changed frame flux = %g, want > 0", flux)
	}
}

func TestNoiseHasLowConfidence(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	frame := make([]float64, 2048)
	for i := range frame {
		frame[i] = rng.NormFloat64() * 0.1
	}
	f := NewSpectralFeatureExtractor(DefaultFeatureParams(16000)).Extract(frame)
	if f.Confidence > 0.6 {
		t.Errorf("noise confidence = %g, want <= 0.6", f.Confidence)
	}
}

func TestSilentFrame(t *testing.T) {
	f := NewSpectralFeatureExtractor(DefaultFeatureParams(16000)).Extract(make([]float64, 1024))
	if f.FundamentalHz != 0 || f.Confidence != 0 || f.SpectralCentroid != 0 {
		t.Errorf("silent features = %+v", f)
	}
}

func TestMelRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 100, 1000, 8000} {
		if got := MelToHz(HzToMel(hz)); math.Abs(got-hz) > 1e-6 {
			t.Errorf("MelToHz(HzToMel(%g)) = %g", hz, got)
		}
	}
}
