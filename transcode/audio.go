package transcode

import (
	"time"
)

// AudioData is decoded mono PCM ready for analysis
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channel count of the source before downmix
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source,omitempty"`
}

// Float32 returns the samples converted for the ring buffer
func (a *AudioData) Float32() []float32 {
	out := make([]float32, len(a.PCM))
	for i, s := range a.PCM {
		out[i] = float32(s)
	}
	return out
}

func durationOf(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
