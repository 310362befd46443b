package tracker

import (
	"time"

	"github.com/RyanBlaney/sonido-voz/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voz/algorithms/speech"
	"github.com/RyanBlaney/sonido-voz/algorithms/tonal"
)

// PitchPath identifies which estimator produced a pitch
type PitchPath int

const (
	PathNone PitchPath = iota // no estimate (inactive frame)
	PathFast
	PathAccurate
)

func (p PitchPath) String() string {
	switch p {
	case PathFast:
		return "fast"
	case PathAccurate:
		return "accurate"
	default:
		return "none"
	}
}

// MarshalText encodes the path by name in JSON and msgpack output
func (p PitchPath) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText is the inverse of MarshalText
func (p *PitchPath) UnmarshalText(text []byte) error {
	switch string(text) {
	case "fast":
		*p = PathFast
	case "accurate":
		*p = PathAccurate
	default:
		*p = PathNone
	}
	return nil
}

// AcousticMeasurement is the merged analysis of one frame
type AcousticMeasurement struct {
	ID        string        `json:"id"`
	Timestamp time.Duration `json:"timestamp"` // stream time at the end of the frame
	Voiced    bool          `json:"voiced"`

	PitchHz         float64   `json:"pitch_hz"`
	PitchConfidence float64   `json:"pitch_confidence"`
	Note            string    `json:"note,omitempty"`
	Cents           float64   `json:"cents"`
	Path            PitchPath `json:"path"`

	Vibrato   *tonal.VibratoMetrics `json:"vibrato,omitempty"` // nil until the phrase is long enough
	Register  tonal.Register        `json:"register,omitempty"`
	Passaggio *tonal.Passaggio      `json:"passaggio,omitempty"`

	Formants     speech.FormantSet           `json:"formants"`
	VoiceQuality *speech.VoiceQualityMetrics `json:"voice_quality,omitempty"`
	Spectral     spectral.SpectralFeatures   `json:"spectral"`

	Confidence float64       `json:"confidence"` // mean of the component confidences
	Latency    time.Duration `json:"latency"`    // wall time spent on the frame
}

// PitchResult is the compact per-frame record used in pitch-only mode
type PitchResult struct {
	Timestamp   time.Duration `json:"timestamp"`
	FrequencyHz float64       `json:"frequency_hz"`
	Confidence  float64       `json:"confidence"`
	IsVoiced    bool          `json:"is_voiced"`
	Note        string        `json:"note,omitempty"`
	Cents       float64       `json:"cents"`
	LatencySec  float64       `json:"latency_sec"`
}
