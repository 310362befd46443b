package tonal

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-voz/algorithms/common"
)

// VibratoType classifies a pitch modulation
type VibratoType string

const (
	VibratoNone      VibratoType = ""          // not enough voiced contour yet
	VibratoStraight  VibratoType = "straight"  // no periodic modulation
	VibratoNatural   VibratoType = "natural"   // 4-7 Hz, 20-100 cents
	VibratoTremolo   VibratoType = "tremolo"   // faster than 8 Hz
	VibratoWobble    VibratoType = "wobble"    // slower than 3 Hz
	VibratoIrregular VibratoType = "irregular" // periodic but outside the above
)

// VibratoMetrics describe the periodic pitch modulation of a contour
type VibratoMetrics struct {
	Detected    bool        `json:"detected"`
	RateHz      float64     `json:"rate_hz"`
	ExtentCents float64     `json:"extent_cents"` // peak deviation from the centre pitch
	Regularity  float64     `json:"regularity"`   // 1 - coefficient of variation of half-cycles
	Type        VibratoType `json:"type,omitempty"`
}

// VibratoParams configures a VibratoAnalyzer
type VibratoParams struct {
	FrameRate     float64 // pitch estimates per second
	WindowSeconds float64 // contour length analyzed
	MinSeconds    float64 // shortest contour analyzed
}

// DefaultVibratoParams returns a one second window at frameRate
func DefaultVibratoParams(frameRate float64) VibratoParams {
	return VibratoParams{
		FrameRate:     frameRate,
		WindowSeconds: 1.0,
		MinSeconds:    0.5,
	}
}

const (
	minVibratoCrossings = 4
	minVibratoCents     = 15.0
	maxVibratoCents     = 200.0 // wider swings are note changes
	maxVibratoRateHz    = 15.0
)

// VibratoAnalyzer keeps the recent voiced pitch contour of a stream and
// measures its vibrato. An unvoiced estimate ends the phrase and clears the
// contour.
//
// A VibratoAnalyzer belongs to one stream and is not safe for concurrent use.
type VibratoAnalyzer struct {
	params  VibratoParams
	contour []float64
	limit   int
}

// NewVibratoAnalyzer creates an analyzer; non-positive durations take defaults
func NewVibratoAnalyzer(params VibratoParams) *VibratoAnalyzer {
	def := DefaultVibratoParams(params.FrameRate)
	if params.WindowSeconds <= 0 {
		params.WindowSeconds = def.WindowSeconds
	}
	if params.MinSeconds <= 0 || params.MinSeconds > params.WindowSeconds {
		params.MinSeconds = min(def.MinSeconds, params.WindowSeconds)
	}
	limit := max(1, int(math.Ceil(params.WindowSeconds*params.FrameRate)))
	return &VibratoAnalyzer{
		params:  params,
		contour: make([]float64, 0, limit),
		limit:   limit,
	}
}

// Process adds one estimate and analyzes the contour so far
func (va *VibratoAnalyzer) Process(est PitchEstimate) VibratoMetrics {
	if !est.Voiced() {
		va.contour = va.contour[:0]
		return VibratoMetrics{}
	}

	if len(va.contour) == va.limit {
		copy(va.contour, va.contour[1:])
		va.contour = va.contour[:len(va.contour)-1]
	}
	va.contour = append(va.contour, est.FrequencyHz)

	if float64(len(va.contour)) < va.params.MinSeconds*va.params.FrameRate {
		return VibratoMetrics{}
	}
	return AnalyzeVibrato(va.contour, va.params.FrameRate)
}

// Reset clears the contour
func (va *VibratoAnalyzer) Reset() {
	va.contour = va.contour[:0]
}

// AnalyzeVibrato measures a voiced pitch contour sampled at frameRate.
//
// The contour is converted to cents and a least-squares line is removed so
// that slow glides do not count as modulation. Extent is sqrt(2) times the
// standard deviation of the residual, which is the amplitude of a sinusoidal
// modulation. Rate comes from the spacing of alternate crossings of a
// hysteresis band of half a standard deviation around zero.
func AnalyzeVibrato(contourHz []float64, frameRate float64) VibratoMetrics {
	n := len(contourHz)
	if n < 2*minVibratoCrossings || frameRate <= 0 {
		return VibratoMetrics{}
	}

	index := make([]float64, n)
	cents := make([]float64, n)
	for i, f := range contourHz {
		if f <= 0 {
			return VibratoMetrics{}
		}
		index[i] = float64(i)
		cents[i] = 1200 * math.Log2(f/ReferenceA4)
	}

	alpha, beta := stat.LinearRegression(index, cents, nil, false)
	residual := make([]float64, n)
	for i, c := range cents {
		residual[i] = c - (alpha + beta*index[i])
	}

	spread := common.StandardDeviation(residual)
	metrics := VibratoMetrics{
		ExtentCents: math.Sqrt2 * spread,
		Type:        VibratoStraight,
	}

	crossings := bandCrossings(residual, spread/2)
	if len(crossings) < minVibratoCrossings {
		return metrics
	}

	halves := make([]float64, len(crossings)-1)
	for i := range halves {
		halves[i] = crossings[i+1] - crossings[i]
	}
	meanHalf := common.Mean(halves)
	rate := frameRate / (2 * meanHalf)

	if metrics.ExtentCents < minVibratoCents || metrics.ExtentCents > maxVibratoCents || rate > maxVibratoRateHz {
		return metrics
	}

	metrics.Detected = true
	metrics.RateHz = rate
	metrics.Regularity = common.Clamp(1-common.StandardDeviation(halves)/meanHalf, 0, 1)
	metrics.Type = classifyVibrato(rate, metrics.ExtentCents)
	return metrics
}

// bandCrossings returns the fractional indices where x leaves the band
// [-h, h] on the opposite side from the previous exit
func bandCrossings(x []float64, h float64) []float64 {
	var crossings []float64
	side := 0
	for i, v := range x {
		next := side
		switch {
		case v > h:
			next = 1
		case v < -h:
			next = -1
		}
		if next == side {
			continue
		}
		if side != 0 && i > 0 {
			level := float64(next) * h
			prev := x[i-1]
			crossings = append(crossings, float64(i-1)+(level-prev)/(v-prev))
		}
		side = next
	}
	return crossings
}

func classifyVibrato(rate, extent float64) VibratoType {
	switch {
	case rate >= 4 && rate <= 7 && extent >= 20 && extent <= 100:
		return VibratoNatural
	case rate > 8:
		return VibratoTremolo
	case rate < 3:
		return VibratoWobble
	}
	return VibratoIrregular
}
