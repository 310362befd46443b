package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-voz/algorithms/common"
)

// FrameStats are the time-domain measurements the activity gate works from
type FrameStats struct {
	Energy float64 `json:"energy"` // RMS amplitude
	ZCR    float64 `json:"zcr"`    // zero crossings per sample, 0..1
}

// ComputeFrameStats measures RMS energy and zero-crossing rate of a frame
func ComputeFrameStats(frame []float64) FrameStats {
	return FrameStats{
		Energy: common.RMS(frame),
		ZCR:    ZeroCrossingRate(frame),
	}
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs that change sign.
// High values point at fricatives or noise, low values at voiced sound.
func ZeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

// ShortTimeEnergy returns the RMS of each frameSize window stepped by hopSize
func ShortTimeEnergy(signal []float64, frameSize, hopSize int) []float64 {
	if len(signal) < frameSize || hopSize <= 0 || frameSize <= 0 {
		return []float64{}
	}

	numFrames := (len(signal)-frameSize)/hopSize + 1
	energies := make([]float64, numFrames)
	for i := range numFrames {
		start := i * hopSize
		energies[i] = common.RMS(signal[start : start+frameSize])
	}
	return energies
}

// EnergyDB converts an RMS amplitude to dBFS, clamped at floor
func EnergyDB(rms, floor float64) float64 {
	if rms < floor {
		rms = floor
	}
	return 20.0 * math.Log10(rms)
}
