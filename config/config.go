package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete tracker configuration. Zero sections are filled from
// Default() when loaded from a file.
type Config struct {
	SampleRate       int     `json:"sample_rate" yaml:"sample_rate"`
	RetentionSeconds float64 `json:"retention_seconds" yaml:"retention_seconds"` // ring buffer length
	WindowSize       int     `json:"window_size" yaml:"window_size"`             // analysis frame length (samples)
	HopSize          int     `json:"hop_size" yaml:"hop_size"`                   // frame stride (samples)

	// PitchOnly skips formant, voice-quality and spectral analysis; measurements
	// then carry pitch alone.
	PitchOnly bool   `json:"pitch_only" yaml:"pitch_only"`
	LogLevel  string `json:"log_level" yaml:"log_level"`

	VAD          VADConfig          `json:"vad" yaml:"vad"`
	Pitch        PitchConfig        `json:"pitch" yaml:"pitch"`
	Formant      FormantConfig      `json:"formant" yaml:"formant"`
	VoiceQuality VoiceQualityConfig `json:"voice_quality" yaml:"voice_quality"`
	Spectral     SpectralConfig     `json:"spectral" yaml:"spectral"`
	Profile      ProfileConfig      `json:"profile" yaml:"profile"`
	Output       OutputConfig       `json:"output" yaml:"output"`
}

type VADConfig struct {
	EnergyThreshold      float64 `json:"energy_threshold" yaml:"energy_threshold"` // RMS
	HangoverFrames       int     `json:"hangover_frames" yaml:"hangover_frames"`
	CalibrationSeconds   float64 `json:"calibration_seconds" yaml:"calibration_seconds"`
	CalibrationChunkMs   int     `json:"calibration_chunk_ms" yaml:"calibration_chunk_ms"`
	NoiseFloorMultiplier float64 `json:"noise_floor_multiplier" yaml:"noise_floor_multiplier"`
}

type PitchConfig struct {
	MinFrequency float64 `json:"min_frequency" yaml:"min_frequency"`
	MaxFrequency float64 `json:"max_frequency" yaml:"max_frequency"`

	// Smoother
	MedianWindow             int     `json:"median_window" yaml:"median_window"`
	TransitionThreshold      float64 `json:"transition_threshold" yaml:"transition_threshold"` // Hz
	RejectionConfidenceScale float64 `json:"rejection_confidence_scale" yaml:"rejection_confidence_scale"`
	MaxConsecutiveRejections int     `json:"max_consecutive_rejections" yaml:"max_consecutive_rejections"` // 0 = never re-anchor
	TrackLength              int     `json:"track_length" yaml:"track_length"`

	VibratoSeconds float64 `json:"vibrato_seconds" yaml:"vibrato_seconds"` // pitch contour analyzed for vibrato

	// Dual path
	LatencyTarget       time.Duration `json:"latency_target" yaml:"latency_target"`
	AccurateBudgetRatio float64       `json:"accurate_budget_ratio" yaml:"accurate_budget_ratio"`
	AccurateTimeout     time.Duration `json:"accurate_timeout" yaml:"accurate_timeout"`
	AccurateURL         string        `json:"accurate_url,omitempty" yaml:"accurate_url,omitempty"` // CREPE server, empty = fast path only
	LatencyWindow       int           `json:"latency_window" yaml:"latency_window"`
}

type FormantConfig struct {
	LPCOrder         int     `json:"lpc_order" yaml:"lpc_order"`
	PreEmphasis      float64 `json:"pre_emphasis" yaml:"pre_emphasis"`
	MaxFormants      int     `json:"max_formants" yaml:"max_formants"`
	SmoothingFactor  float64 `json:"smoothing_factor" yaml:"smoothing_factor"` // weight of the new estimate
	MinFrequency     float64 `json:"min_frequency" yaml:"min_frequency"`
	MaxFrequency     float64 `json:"max_frequency" yaml:"max_frequency"`
	MinBandwidth     float64 `json:"min_bandwidth" yaml:"min_bandwidth"`
	MaxBandwidth     float64 `json:"max_bandwidth" yaml:"max_bandwidth"`
	MinPoleMagnitude float64 `json:"min_pole_magnitude" yaml:"min_pole_magnitude"`
	MaxPoleMagnitude float64 `json:"max_pole_magnitude" yaml:"max_pole_magnitude"`
}

type VoiceQualityConfig struct {
	WindowSize       int     `json:"window_size" yaml:"window_size"`
	HopSize          int     `json:"hop_size" yaml:"hop_size"`
	MinF0            float64 `json:"min_f0" yaml:"min_f0"`
	MaxF0            float64 `json:"max_f0" yaml:"max_f0"`
	VoicingThreshold float64 `json:"voicing_threshold" yaml:"voicing_threshold"`
	MinBreakFrames   int     `json:"min_break_frames" yaml:"min_break_frames"`
	AnalysisSeconds  float64 `json:"analysis_seconds" yaml:"analysis_seconds"` // window taken from the ring buffer
	IntervalFrames   int     `json:"interval_frames" yaml:"interval_frames"`   // hops between analyses
}

type SpectralConfig struct {
	MFCCCoefficients int     `json:"mfcc_coefficients" yaml:"mfcc_coefficients"`
	MelFilters       int     `json:"mel_filters" yaml:"mel_filters"`
	RolloffThreshold float64 `json:"rolloff_threshold" yaml:"rolloff_threshold"`
	MinVocalHz       float64 `json:"min_vocal_hz" yaml:"min_vocal_hz"`
	MaxVocalHz       float64 `json:"max_vocal_hz" yaml:"max_vocal_hz"`
}

type ProfileConfig struct {
	CalibrationSeconds float64 `json:"calibration_seconds" yaml:"calibration_seconds"`
	MinConfidence      float64 `json:"min_confidence" yaml:"min_confidence"`
}

type OutputConfig struct {
	HistorySize int `json:"history_size" yaml:"history_size"`
	BufferSize  int `json:"buffer_size" yaml:"buffer_size"` // output channel capacity
}

// Default returns the configuration used for 48 kHz microphone input
func Default() *Config {
	return &Config{
		SampleRate:       48000,
		RetentionSeconds: 5.0,
		WindowSize:       2048,
		HopSize:          512,
		LogLevel:         "info",
		VAD:              DefaultVADConfig(),
		Pitch:            DefaultPitchConfig(),
		Formant:          DefaultFormantConfig(),
		VoiceQuality:     DefaultVoiceQualityConfig(),
		Spectral:         DefaultSpectralConfig(),
		Profile:          DefaultProfileConfig(),
		Output:           DefaultOutputConfig(),
	}
}

func DefaultVADConfig() VADConfig {
	return VADConfig{
		EnergyThreshold:      0.01,
		HangoverFrames:       5,
		CalibrationSeconds:   1.0,
		CalibrationChunkMs:   100,
		NoiseFloorMultiplier: 1.5,
	}
}

func DefaultPitchConfig() PitchConfig {
	return PitchConfig{
		MinFrequency:             50.0,
		MaxFrequency:             1000.0,
		MedianWindow:             5,
		TransitionThreshold:      10.0,
		RejectionConfidenceScale: 0.8,
		MaxConsecutiveRejections: 3,
		TrackLength:              10,
		VibratoSeconds:           1.0,
		LatencyTarget:            120 * time.Millisecond,
		AccurateBudgetRatio:      0.8,
		AccurateTimeout:          40 * time.Millisecond,
		LatencyWindow:            20,
	}
}

func DefaultFormantConfig() FormantConfig {
	return FormantConfig{
		LPCOrder:         16,
		PreEmphasis:      0.97,
		MaxFormants:      5,
		SmoothingFactor:  0.3,
		MinFrequency:     200.0,
		MaxFrequency:     4000.0,
		MinBandwidth:     30.0,
		MaxBandwidth:     1000.0,
		MinPoleMagnitude: 0.7,
		MaxPoleMagnitude: 0.99,
	}
}

func DefaultVoiceQualityConfig() VoiceQualityConfig {
	return VoiceQualityConfig{
		WindowSize:       512,
		HopSize:          256,
		MinF0:            75.0,
		MaxF0:            1000.0,
		VoicingThreshold: 0.5,
		MinBreakFrames:   3,
		AnalysisSeconds:  1.0,
		IntervalFrames:   25,
	}
}

func DefaultSpectralConfig() SpectralConfig {
	return SpectralConfig{
		MFCCCoefficients: 13,
		MelFilters:       26,
		RolloffThreshold: 0.85,
		MinVocalHz:       50.0,
		MaxVocalHz:       1000.0,
	}
}

func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{
		CalibrationSeconds: 10.0,
		MinConfidence:      0.7,
	}
}

func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		HistorySize: 100,
		BufferSize:  64,
	}
}

// Load reads a YAML file on top of Default(); keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every inconsistent setting, joined
func (c *Config) Validate() error {
	var errs []error

	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.WindowSize <= 0 || c.HopSize <= 0 {
		errs = append(errs, fmt.Errorf("window_size and hop_size must be positive"))
	}
	if c.HopSize > c.WindowSize {
		errs = append(errs, fmt.Errorf("hop_size (%d) exceeds window_size (%d)", c.HopSize, c.WindowSize))
	}
	if float64(c.WindowSize) > c.RetentionSeconds*float64(c.SampleRate) {
		errs = append(errs, fmt.Errorf("retention of %.2fs cannot hold a %d-sample window", c.RetentionSeconds, c.WindowSize))
	}
	if c.VAD.HangoverFrames < 0 {
		errs = append(errs, fmt.Errorf("vad.hangover_frames must not be negative"))
	}
	if c.Pitch.MinFrequency <= 0 || c.Pitch.MaxFrequency <= c.Pitch.MinFrequency {
		errs = append(errs, fmt.Errorf("pitch frequency range [%g, %g] is invalid", c.Pitch.MinFrequency, c.Pitch.MaxFrequency))
	}
	if c.Pitch.MaxFrequency >= float64(c.SampleRate)/2 {
		errs = append(errs, fmt.Errorf("pitch.max_frequency must be below Nyquist"))
	}
	if c.Pitch.MedianWindow <= 0 || c.Pitch.TrackLength <= 0 {
		errs = append(errs, fmt.Errorf("pitch.median_window and pitch.track_length must be positive"))
	}
	if c.Formant.LPCOrder <= 0 || c.Formant.LPCOrder*2 > c.WindowSize {
		errs = append(errs, fmt.Errorf("formant.lpc_order %d is invalid for window %d", c.Formant.LPCOrder, c.WindowSize))
	}
	if c.Formant.SmoothingFactor <= 0 || c.Formant.SmoothingFactor > 1 {
		errs = append(errs, fmt.Errorf("formant.smoothing_factor must be in (0, 1]"))
	}
	if c.VoiceQuality.WindowSize <= 0 || c.VoiceQuality.HopSize <= 0 {
		errs = append(errs, fmt.Errorf("voice_quality window and hop must be positive"))
	}
	if c.Output.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("output.history_size must be positive"))
	}

	return errors.Join(errs...)
}

// RingCapacity is the ring buffer size in samples
func (c *Config) RingCapacity() int {
	return int(c.RetentionSeconds * float64(c.SampleRate))
}

// HopDuration is the wall-clock duration of one hop
func (c *Config) HopDuration() time.Duration {
	return time.Duration(float64(c.HopSize) / float64(c.SampleRate) * float64(time.Second))
}
