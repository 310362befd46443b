package spectral

import (
	"github.com/RyanBlaney/sonido-voz/algorithms/common"
	"github.com/RyanBlaney/sonido-voz/algorithms/temporal"
	"github.com/RyanBlaney/sonido-voz/algorithms/windowing"
)

// SpectralFeatures summarizes the spectrum of one frame
type SpectralFeatures struct {
	FundamentalHz    float64   `json:"fundamental_hz"`
	SpectralCentroid float64   `json:"spectral_centroid"` // Hz
	SpectralRolloff  float64   `json:"spectral_rolloff"`  // Hz
	SpectralFlux     float64   `json:"spectral_flux"`
	ZeroCrossingRate float64   `json:"zero_crossing_rate"`
	MFCC             []float64 `json:"mfcc"`
	Confidence       float64   `json:"confidence"` // 1 - spectral flatness
}

// FeatureParams configures a SpectralFeatureExtractor
type FeatureParams struct {
	SampleRate       int
	MFCCCoefficients int
	MelFilters       int
	RolloffThreshold float64
	MinVocalHz       float64 // fundamental search range
	MaxVocalHz       float64
}

// DefaultFeatureParams returns the vocal defaults for sampleRate
func DefaultFeatureParams(sampleRate int) FeatureParams {
	return FeatureParams{
		SampleRate:       sampleRate,
		MFCCCoefficients: 13,
		MelFilters:       26,
		RolloffThreshold: 0.85,
		MinVocalHz:       50,
		MaxVocalHz:       1000,
	}
}

// SpectralFeatureExtractor turns frames into SpectralFeatures. Flux is taken
// against the previous frame given to the same extractor, so an extractor
// serves one stream and is not safe for concurrent use.
type SpectralFeatureExtractor struct {
	params FeatureParams

	fft      *FFT
	window   *windowing.Window
	centroid *SpectralCentroid
	rolloff  *SpectralRolloff
	flux     *SpectralFlux
	flatness *SpectralFlatness
	mfcc     *MFCC
}

// NewSpectralFeatureExtractor creates an extractor
func NewSpectralFeatureExtractor(params FeatureParams) *SpectralFeatureExtractor {
	return &SpectralFeatureExtractor{
		params:   params,
		fft:      NewFFT(),
		window:   windowing.NewHann(),
		centroid: NewSpectralCentroid(params.SampleRate),
		rolloff:  NewSpectralRolloff(params.SampleRate, params.RolloffThreshold),
		flux:     NewSpectralFlux(),
		flatness: NewSpectralFlatness(),
		mfcc:     NewMFCC(params.SampleRate, params.MFCCCoefficients, params.MelFilters),
	}
}

// Extract computes the features of frame. A frame too short for a spectrum
// yields zero features.
func (e *SpectralFeatureExtractor) Extract(frame []float64) SpectralFeatures {
	if len(frame) < 4 {
		return SpectralFeatures{}
	}

	magnitude := e.fft.Magnitude(e.window.Apply(frame))

	features := SpectralFeatures{
		FundamentalHz:    e.fundamental(magnitude, len(frame)),
		SpectralCentroid: e.centroid.Compute(magnitude),
		SpectralRolloff:  e.rolloff.Compute(magnitude),
		SpectralFlux:     e.flux.Compute(magnitude),
		ZeroCrossingRate: temporal.ZeroCrossingRate(frame),
	}

	if mfcc, err := e.mfcc.Compute(magnitude); err == nil {
		features.MFCC = mfcc
	}

	if common.Energy(magnitude) > 0 {
		features.Confidence = common.Clamp(1.0-e.flatness.Compute(magnitude), 0, 1)
	}
	return features
}

// fundamental returns the strongest peak inside the vocal range, refined by
// parabolic interpolation across neighbouring bins
func (e *SpectralFeatureExtractor) fundamental(magnitude []float64, n int) float64 {
	sr := e.params.SampleRate
	lo := max(1, int(e.params.MinVocalHz*float64(n)/float64(sr)))
	hi := min(len(magnitude)-2, int(e.params.MaxVocalHz*float64(n)/float64(sr))+1)
	if lo > hi {
		return 0
	}

	best := -1
	for k := lo; k <= hi; k++ {
		if best < 0 || magnitude[k] > magnitude[best] {
			best = k
		}
	}
	if magnitude[best] == 0 {
		return 0
	}

	pos, _ := common.ParabolicPeak(magnitude, best)
	return BinFrequency(pos, n, sr)
}

// Reset clears the flux history
func (e *SpectralFeatureExtractor) Reset() {
	e.flux.Reset()
}
