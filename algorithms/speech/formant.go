package speech

import (
	"math"
	"math/cmplx"
	"slices"

	"github.com/RyanBlaney/sonido-voz/algorithms/filters"
	"github.com/RyanBlaney/sonido-voz/algorithms/windowing"
	"github.com/RyanBlaney/sonido-voz/logging"
)

// Formant is one vocal tract resonance
type Formant struct {
	FrequencyHz float64 `json:"frequency_hz"`
	BandwidthHz float64 `json:"bandwidth_hz"`
	Amplitude   float64 `json:"amplitude"` // LPC envelope gain at the formant
}

// FormantSet holds up to MaxFormants resonances in strictly ascending order
type FormantSet struct {
	Formants   []Formant  `json:"formants"`
	Confidence float64    `json:"confidence"`
	Vowel      VowelShape `json:"vowel,omitempty"`
}

// F returns the i-th formant frequency (1-based), or 0 if absent
func (fs FormantSet) F(i int) float64 {
	if i < 1 || i > len(fs.Formants) {
		return 0
	}
	return fs.Formants[i-1].FrequencyHz
}

// FormantParams configures a FormantTracker
type FormantParams struct {
	LPCOrder         int
	PreEmphasis      float64
	MaxFormants      int
	SmoothingFactor  float64 // weight of the new frame
	MinFrequency     float64
	MaxFrequency     float64
	MinBandwidth     float64
	MaxBandwidth     float64
	MinPoleMagnitude float64 // exclusive
	MaxPoleMagnitude float64 // exclusive
}

// DefaultFormantParams returns the vocal defaults
func DefaultFormantParams() FormantParams {
	return FormantParams{
		LPCOrder:         16,
		PreEmphasis:      filters.DefaultPreEmphasisCoefficient,
		MaxFormants:      5,
		SmoothingFactor:  0.3,
		MinFrequency:     200,
		MaxFrequency:     4000,
		MinBandwidth:     30,
		MaxBandwidth:     1000,
		MinPoleMagnitude: 0.7,
		MaxPoleMagnitude: 0.99,
	}
}

// canonical ranges of F1..F5; each formant outside its range lowers confidence
var canonicalFormantRanges = [...][2]float64{
	{200, 1000},
	{800, 2500},
	{1500, 3500},
	{2500, 4500},
	{3000, 5000},
}

// FormantTracker extracts formants from frames by LPC root solving and
// smooths them over time.
//
// Per frame: decimation to about 2*(MaxFrequency+1 kHz), pre-emphasis, Hamming
// window, LPC, companion-matrix roots. Decimation keeps the LPC order
// spent on the formant band at high sample rates. Poles
// in the upper half plane whose magnitude, frequency and bandwidth are all in
// range become candidates; the lowest MaxFormants are blended index by index
// with the previous frame and re-sorted so frequencies stay strictly ascending.
//
// A tracker belongs to one stream and is not safe for concurrent use.
type FormantTracker struct {
	params     FormantParams
	sampleRate int
	lpcRate    int // rate after decimation

	decimator   *filters.Decimator
	preEmphasis *filters.PreEmphasis
	window      *windowing.Window
	lpc         *LPCAnalyzer

	previous []Formant
	logger   logging.Logger
}

// NewFormantTracker creates a tracker for audio at sampleRate
func NewFormantTracker(sampleRate int, params FormantParams) *FormantTracker {
	if params.MaxFormants <= 0 {
		params.MaxFormants = 5
	}
	if params.MaxFrequency <= 0 {
		params.MaxFrequency = DefaultFormantParams().MaxFrequency
	}
	decimator := filters.NewDecimator(filters.DecimationFactor(sampleRate, params.MaxFrequency))
	lpcRate := sampleRate / decimator.Factor()
	return &FormantTracker{
		params:      params,
		sampleRate:  sampleRate,
		lpcRate:     lpcRate,
		decimator:   decimator,
		preEmphasis: filters.NewPreEmphasis(params.PreEmphasis),
		window:      windowing.NewHamming(),
		lpc:         NewLPCAnalyzer(lpcRate, params.LPCOrder),
		logger: logging.WithFields(logging.Fields{
			"component":   "formant_tracker",
			"sample_rate": sampleRate,
			"lpc_rate":    lpcRate,
		}),
	}
}

// Track returns the smoothed formants of frame. Frames that yield no valid
// formant (silence, degenerate LPC) return an empty set with zero confidence
// and clear the smoothing history.
func (ft *FormantTracker) Track(frame []float64) FormantSet {
	candidates, err := ft.extract(frame)
	if err != nil {
		ft.logger.Debug("Formant extraction failed", logging.Fields{
			"error":        err.Error(),
			"frame_length": len(frame),
		})
	}
	if len(candidates) == 0 {
		ft.previous = nil
		return FormantSet{}
	}

	smoothed := ft.smooth(candidates)
	ft.previous = slices.Clone(smoothed)

	set := FormantSet{
		Formants:   smoothed,
		Confidence: formantConfidence(smoothed),
	}
	if len(smoothed) >= 2 {
		set.Vowel = ClassifyVowel(smoothed[0].FrequencyHz, smoothed[1].FrequencyHz)
	}
	return set
}

// extract returns the in-range LPC resonances of one frame, lowest first
func (ft *FormantTracker) extract(frame []float64) ([]Formant, error) {
	emphasized := ft.preEmphasis.ProcessFrame(ft.decimator.ProcessFrame(frame))
	windowed := ft.window.Apply(emphasized)

	result, err := ft.lpc.Analyze(windowed)
	if err != nil {
		return nil, err
	}

	poles, err := LPCPoles(result.Coefficients)
	if err != nil {
		return nil, err
	}

	sr := float64(ft.lpcRate)
	p := ft.params
	var formants []Formant
	for _, z := range poles {
		if imag(z) <= 0 {
			continue
		}
		mag := cmplx.Abs(z)
		if mag <= p.MinPoleMagnitude || mag >= p.MaxPoleMagnitude {
			continue
		}

		angle := cmplx.Phase(z)
		freq := angle * sr / (2 * math.Pi)
		bw := -math.Log(mag) * sr / math.Pi
		if freq < p.MinFrequency || freq > p.MaxFrequency || bw < p.MinBandwidth || bw > p.MaxBandwidth {
			continue
		}

		formants = append(formants, Formant{
			FrequencyHz: freq,
			BandwidthHz: bw,
			Amplitude:   Envelope(result.Coefficients, angle),
		})
	}

	slices.SortFunc(formants, byFrequency)
	if len(formants) > p.MaxFormants {
		formants = formants[:p.MaxFormants]
	}
	return formants, nil
}

// smooth blends current with the previous frame per index, then restores
// strict ascending order
func (ft *FormantTracker) smooth(current []Formant) []Formant {
	alpha := ft.params.SmoothingFactor
	out := make([]Formant, len(current))
	for i, f := range current {
		if i < len(ft.previous) && alpha > 0 && alpha < 1 {
			prev := ft.previous[i]
			f.FrequencyHz = alpha*f.FrequencyHz + (1-alpha)*prev.FrequencyHz
			f.BandwidthHz = alpha*f.BandwidthHz + (1-alpha)*prev.BandwidthHz
			f.Amplitude = alpha*f.Amplitude + (1-alpha)*prev.Amplitude
		}
		out[i] = f
	}

	slices.SortFunc(out, byFrequency)
	strict := out[:0]
	for _, f := range out {
		if len(strict) > 0 && f.FrequencyHz <= strict[len(strict)-1].FrequencyHz {
			continue
		}
		strict = append(strict, f)
	}
	return strict
}

// Reset clears the smoothing history
func (ft *FormantTracker) Reset() {
	ft.previous = nil
}

func byFrequency(a, b Formant) int {
	switch {
	case a.FrequencyHz < b.FrequencyHz:
		return -1
	case a.FrequencyHz > b.FrequencyHz:
		return 1
	}
	return 0
}

// formantConfidence starts at 1 and loses 20% for every formant outside its
// canonical range
func formantConfidence(formants []Formant) float64 {
	if len(formants) == 0 {
		return 0
	}
	confidence := 1.0
	for i, f := range formants {
		if i >= len(canonicalFormantRanges) {
			break
		}
		r := canonicalFormantRanges[i]
		if f.FrequencyHz < r[0] || f.FrequencyHz > r[1] {
			confidence *= 0.8
		}
	}
	return confidence
}
