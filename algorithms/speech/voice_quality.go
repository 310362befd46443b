package speech

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/RyanBlaney/sonido-voz/algorithms/common"
	"github.com/RyanBlaney/sonido-voz/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voz/algorithms/windowing"
)

// VoiceBreak is a run of unvoiced frames between voiced ones
type VoiceBreak struct {
	StartFrame  int     `json:"start_frame"`
	EndFrame    int     `json:"end_frame"` // exclusive
	DurationSec float64 `json:"duration_sec"`
}

// VoiceQualityMetrics are the perturbation and noise measures of a window
// of voiced audio
type VoiceQualityMetrics struct {
	JitterPercent  float64 `json:"jitter_percent"`  // period irregularity
	ShimmerPercent float64 `json:"shimmer_percent"` // amplitude irregularity
	HNRDb          float64 `json:"hnr_db"`          // harmonic-to-noise ratio
	Harmonicity    float64 `json:"harmonicity"`     // share of energy in the first harmonics, 0-1

	VoiceBreaks []VoiceBreak `json:"voice_breaks"`
	// SubharmonicStrength holds the energy at F0/2, F0/3, F0/4 relative to F0
	SubharmonicStrength []float64 `json:"subharmonic_strength"`

	MeanF0       float64 `json:"mean_f0"`
	VoicedFrames int     `json:"voiced_frames"`
	TotalFrames  int     `json:"total_frames"`
	Confidence   float64 `json:"confidence"` // voiced frame ratio
}

// VoiceQualityParams configures a VoiceQualityAnalyzer
type VoiceQualityParams struct {
	WindowSize       int
	HopSize          int
	MinF0            float64
	MaxF0            float64
	VoicingThreshold float64 // minimum pitch confidence of a voiced frame
	MinBreakFrames   int
}

// DefaultVoiceQualityParams returns the vocal defaults
func DefaultVoiceQualityParams() VoiceQualityParams {
	return VoiceQualityParams{
		WindowSize:       512,
		HopSize:          256,
		MinF0:            75,
		MaxF0:            1000,
		VoicingThreshold: 0.5,
		MinBreakFrames:   3,
	}
}

const (
	minVoicedFrames  = 3
	harmonicBinSpan  = 2 // bins either side of a harmonic
	maxHNRHarmonics  = 10
	maxSpectrumSize  = 8192
	maxHNRDb         = 100.0
	subharmonicCount = 3
)

// VoiceQualityAnalyzer measures jitter, shimmer, HNR, harmonicity, voice
// breaks and subharmonics of a window of audio (typically the last second).
//
// An F0 contour is built frame by frame with the autocorrelation estimator.
// Perturbation measures come from consecutive voiced frames: jitter is the
// mean absolute period difference relative to the mean period, shimmer the
// same for per-frame peak amplitude. Spectral measures use the mean F0 over
// one Hann-windowed FFT taken from the centre of the window.
//
// The analysis window is widened to two periods of MinF0 when the configured
// one is too short at the sample rate.
//
// References:
//   - Boersma, P. (1993). "Accurate short-term analysis of the fundamental
//     frequency and the harmonics-to-noise ratio of a sampled sound"
//   - Farrús, M. et al. (2007). "Jitter and shimmer measurements for speaker recognition"
//
// An analyzer reuses its FFT plan and is not safe for concurrent use.
type VoiceQualityAnalyzer struct {
	params     VoiceQualityParams
	sampleRate int
	window     int
	hop        int

	estimator *tonal.AutocorrelationEstimator
	hann      *windowing.Window
	fft       *fourier.FFT
}

// NewVoiceQualityAnalyzer creates a new voice quality analyzer
func NewVoiceQualityAnalyzer(sampleRate int, params VoiceQualityParams) *VoiceQualityAnalyzer {
	def := DefaultVoiceQualityParams()
	if params.MinF0 <= 0 {
		params.MinF0 = def.MinF0
	}
	if params.MaxF0 <= params.MinF0 {
		params.MaxF0 = def.MaxF0
	}
	if params.MinBreakFrames <= 0 {
		params.MinBreakFrames = def.MinBreakFrames
	}

	window := max(params.WindowSize, int(math.Ceil(2*float64(sampleRate)/params.MinF0)))
	hop := params.HopSize
	if hop <= 0 || window != params.WindowSize {
		hop = window / 2
	}

	return &VoiceQualityAnalyzer{
		params:     params,
		sampleRate: sampleRate,
		window:     window,
		hop:        hop,
		estimator:  tonal.NewAutocorrelationEstimator(sampleRate, params.MinF0, params.MaxF0),
		hann:       windowing.NewHann(),
	}
}

// FrameGeometry returns the contour window and hop actually used, in samples
func (vqa *VoiceQualityAnalyzer) FrameGeometry() (window, hop int) {
	return vqa.window, vqa.hop
}

type contourFrame struct {
	voiced    bool
	f0        float64
	period    float64 // seconds
	amplitude float64 // peak absolute sample
}

// Analyze measures signal. With fewer than three voiced frames every measure
// is zero; this is not an error.
func (vqa *VoiceQualityAnalyzer) Analyze(signal []float64) VoiceQualityMetrics {
	contour := vqa.contour(signal)

	metrics := VoiceQualityMetrics{
		TotalFrames:         len(contour),
		SubharmonicStrength: make([]float64, subharmonicCount),
		VoiceBreaks:         []VoiceBreak{},
	}

	voicedF0 := make([]float64, 0, len(contour))
	for _, f := range contour {
		if f.voiced {
			voicedF0 = append(voicedF0, f.f0)
		}
	}
	metrics.VoicedFrames = len(voicedF0)
	if metrics.VoicedFrames < minVoicedFrames {
		return metrics
	}

	metrics.MeanF0 = common.Mean(voicedF0)
	metrics.JitterPercent = perturbation(contour, func(f contourFrame) float64 { return f.period })
	metrics.ShimmerPercent = perturbation(contour, func(f contourFrame) float64 { return f.amplitude })
	metrics.VoiceBreaks = vqa.voiceBreaks(contour)
	metrics.Confidence = float64(metrics.VoicedFrames) / float64(metrics.TotalFrames)

	vqa.spectralMeasures(signal, metrics.MeanF0, &metrics)
	return metrics
}

func (vqa *VoiceQualityAnalyzer) contour(signal []float64) []contourFrame {
	if len(signal) < vqa.window {
		return nil
	}

	frames := make([]contourFrame, 0, (len(signal)-vqa.window)/vqa.hop+1)
	for start := 0; start+vqa.window <= len(signal); start += vqa.hop {
		frame := signal[start : start+vqa.window]
		est, period := vqa.estimator.EstimateWithPeak(frame)

		cf := contourFrame{}
		if est.Voiced() && est.Confidence >= vqa.params.VoicingThreshold {
			peak := 0.0
			for _, s := range frame {
				peak = max(peak, math.Abs(s))
			}
			cf = contourFrame{
				voiced:    true,
				f0:        est.FrequencyHz,
				period:    period / float64(vqa.sampleRate),
				amplitude: peak,
			}
		}
		frames = append(frames, cf)
	}
	return frames
}

// perturbation is the mean absolute difference of value between consecutive
// voiced frames, relative to its mean over voiced frames, in percent
func perturbation(contour []contourFrame, value func(contourFrame) float64) float64 {
	diffSum, pairs := 0.0, 0
	sum, count := 0.0, 0
	for i, f := range contour {
		if !f.voiced {
			continue
		}
		sum += value(f)
		count++
		if i > 0 && contour[i-1].voiced {
			diffSum += math.Abs(value(f) - value(contour[i-1]))
			pairs++
		}
	}
	if pairs == 0 || sum == 0 {
		return 0
	}
	mean := sum / float64(count)
	return diffSum / float64(pairs) / mean * 100
}

// voiceBreaks finds unvoiced runs of at least MinBreakFrames that have voiced
// frames on both sides
func (vqa *VoiceQualityAnalyzer) voiceBreaks(contour []contourFrame) []VoiceBreak {
	breaks := []VoiceBreak{}
	runStart := -1
	seenVoiced := false
	for i, f := range contour {
		switch {
		case !f.voiced && seenVoiced && runStart < 0:
			runStart = i
		case f.voiced:
			if runStart >= 0 && i-runStart >= vqa.params.MinBreakFrames {
				breaks = append(breaks, VoiceBreak{
					StartFrame:  runStart,
					EndFrame:    i,
					DurationSec: float64((i-runStart)*vqa.hop) / float64(vqa.sampleRate),
				})
			}
			runStart = -1
			seenVoiced = true
		}
	}
	return breaks
}

// spectralMeasures fills HNR, harmonicity and subharmonic strength from a
// power spectrum of the centre of signal
func (vqa *VoiceQualityAnalyzer) spectralMeasures(signal []float64, f0 float64, m *VoiceQualityMetrics) {
	size := min(common.PrevPowerOfTwo(len(signal)), maxSpectrumSize)
	if size < 64 || f0 <= 0 {
		return
	}

	start := (len(signal) - size) / 2
	segment := vqa.hann.Apply(signal[start : start+size])

	if vqa.fft == nil {
		vqa.fft = fourier.NewFFT(size)
	} else if vqa.fft.Len() != size {
		vqa.fft.Reset(size)
	}
	coeffs := vqa.fft.Coefficients(nil, segment)

	power := make([]float64, len(coeffs))
	total := 0.0
	for k := 1; k < len(coeffs); k++ { // skip DC
		mag := cmplx.Abs(coeffs[k])
		power[k] = mag * mag
		total += power[k]
	}
	if total == 0 {
		return
	}

	binHz := float64(vqa.sampleRate) / float64(size)
	nyquist := float64(vqa.sampleRate) / 2

	// all harmonics below Nyquist count for HNR, the first ten for harmonicity
	harmonic := make([]bool, len(power))
	harmonicEnergy, firstTen := 0.0, 0.0
	for h := 1; float64(h)*f0 < nyquist; h++ {
		e := bandEnergy(power, harmonic, float64(h)*f0/binHz)
		harmonicEnergy += e
		if h <= maxHNRHarmonics {
			firstTen += e
		}
	}

	noise := total - harmonicEnergy
	if noise <= total*1e-10 {
		m.HNRDb = maxHNRDb
	} else {
		m.HNRDb = min(10*math.Log10(harmonicEnergy/noise), maxHNRDb)
	}
	m.Harmonicity = common.Clamp(firstTen/total, 0, 1)

	fundamental := bandEnergy(power, nil, f0/binHz)
	if fundamental > 0 {
		for d := 2; d < 2+subharmonicCount; d++ {
			m.SubharmonicStrength[d-2] = bandEnergy(power, nil, f0/float64(d)/binHz) / fundamental
		}
	}
}

// bandEnergy sums power within ±harmonicBinSpan of a fractional bin. When
// claimed is non-nil, bins already claimed are skipped and newly summed bins
// are marked.
func bandEnergy(power []float64, claimed []bool, bin float64) float64 {
	centre := int(math.Round(bin))
	sum := 0.0
	for k := centre - harmonicBinSpan; k <= centre+harmonicBinSpan; k++ {
		if k < 1 || k >= len(power) {
			continue
		}
		if claimed != nil {
			if claimed[k] {
				continue
			}
			claimed[k] = true
		}
		sum += power[k]
	}
	return sum
}
