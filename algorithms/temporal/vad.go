package temporal

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-voz/algorithms/common"
)

// ErrCalibrationTooShort is returned when the ambient recording does not
// contain a single calibration chunk
var ErrCalibrationTooShort = errors.New("ambient recording too short for calibration")

// SilenceFloor is the RMS reported as the dBFS floor (-100 dB)
const SilenceFloor = 1e-5

// VADState is the gate decision for one frame
type VADState struct {
	IsActive        bool    `json:"is_active"`
	Energy          float64 `json:"energy"`
	EnergyDB        float64 `json:"energy_db"` // dBFS
	ZCR             float64 `json:"zcr"`
	HangoverCounter int     `json:"hangover_counter"`
}

// VoiceActivityGate decides per frame whether sound worth analyzing is present.
//
// A frame is active when its RMS energy exceeds both the calibrated noise floor
// and the absolute threshold. Every active frame rearms a hangover counter so
// that short dips inside a phrase do not cut analysis: an active frame
// followed by silence keeps the gate open for hangover frames in total.
//
// A gate is owned by one tracker and is not safe for concurrent use.
type VoiceActivityGate struct {
	energyThreshold float64
	hangoverFrames  int
	noiseFloor      float64

	chunkMs    int
	multiplier float64

	counter int
}

// NewVoiceActivityGate creates a gate with an absolute RMS threshold and
// hangover length in frames. The noise floor starts at zero.
func NewVoiceActivityGate(energyThreshold float64, hangoverFrames int) *VoiceActivityGate {
	if hangoverFrames < 1 {
		hangoverFrames = 1
	}
	return &VoiceActivityGate{
		energyThreshold: energyThreshold,
		hangoverFrames:  hangoverFrames,
		chunkMs:         100,
		multiplier:      1.5,
	}
}

// SetCalibration sets the chunk length and multiplier used by CalibrateNoiseFloor
func (g *VoiceActivityGate) SetCalibration(chunkMs int, multiplier float64) {
	if chunkMs > 0 {
		g.chunkMs = chunkMs
	}
	if multiplier > 0 {
		g.multiplier = multiplier
	}
}

// Process classifies one frame and advances the hangover state
func (g *VoiceActivityGate) Process(frame []float64) VADState {
	stats := ComputeFrameStats(frame)

	detected := stats.Energy > g.noiseFloor && stats.Energy > g.energyThreshold
	active := false
	if detected {
		g.counter = g.hangoverFrames
		active = true
	} else if g.counter > 0 {
		g.counter--
		active = g.counter > 0
	}

	return VADState{
		IsActive:        active,
		Energy:          stats.Energy,
		EnergyDB:        EnergyDB(stats.Energy, SilenceFloor),
		ZCR:             stats.ZCR,
		HangoverCounter: g.counter,
	}
}

// CalibrateNoiseFloor estimates the ambient noise level from a recording taken
// while the user is silent: the recording is cut into fixed chunks and the
// floor is multiplier times the median chunk RMS. The result is stored on the
// gate and returned. The same input always yields the same floor.
func (g *VoiceActivityGate) CalibrateNoiseFloor(ambient []float64, sampleRate int) (float64, error) {
	chunk := sampleRate * g.chunkMs / 1000
	if chunk <= 0 || len(ambient) < chunk {
		return 0, fmt.Errorf("calibrate noise floor (%d samples, chunk %d): %w",
			len(ambient), chunk, ErrCalibrationTooShort)
	}

	levels := ShortTimeEnergy(ambient, chunk, chunk)
	g.noiseFloor = g.multiplier * common.Median(levels)
	return g.noiseFloor, nil
}

// NoiseFloor returns the current noise floor (RMS)
func (g *VoiceActivityGate) NoiseFloor() float64 {
	return g.noiseFloor
}

// SetNoiseFloor replaces the noise floor, e.g. with a stored calibration
func (g *VoiceActivityGate) SetNoiseFloor(floor float64) {
	if floor < 0 {
		floor = 0
	}
	g.noiseFloor = floor
}

// Reset clears the hangover state but keeps the calibration
func (g *VoiceActivityGate) Reset() {
	g.counter = 0
}
