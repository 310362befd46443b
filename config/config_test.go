package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if got := cfg.RingCapacity(); got != 240000 {
		t.Errorf("RingCapacity() = %d, want 240000", got)
	}
	if got := cfg.HopDuration(); got < 10*time.Millisecond || got > 11*time.Millisecond {
		t.Errorf("HopDuration() = %v, want ~10.7ms", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.yaml")
	data := `
sample_rate: 44100
hop_size: 441
pitch:
  transition_threshold: 25
  latency_target: 100ms
vad:
  hangover_frames: 8
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SampleRate != 44100 || cfg.HopSize != 441 {
		t.Errorf("top-level overrides not applied: %+v", cfg)
	}
	if cfg.Pitch.TransitionThreshold != 25 {
		t.Errorf("TransitionThreshold = %g, want 25", cfg.Pitch.TransitionThreshold)
	}
	if cfg.Pitch.LatencyTarget != 100*time.Millisecond {
		t.Errorf("LatencyTarget = %v, want 100ms", cfg.Pitch.LatencyTarget)
	}
	if cfg.VAD.HangoverFrames != 8 {
		t.Errorf("HangoverFrames = %d, want 8", cfg.VAD.HangoverFrames)
	}
	// untouched keys keep defaults
	if cfg.WindowSize != 2048 || cfg.Formant.LPCOrder != 16 {
		t.Errorf("defaults lost: window=%d lpc=%d", cfg.WindowSize, cfg.Formant.LPCOrder)
	}
	if cfg.Pitch.MedianWindow != 5 {
		t.Errorf("nested default lost: median_window=%d", cfg.Pitch.MedianWindow)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"hop larger than window", func(c *Config) { c.HopSize = 4096 }, "exceeds window_size"},
		{"bad pitch range", func(c *Config) { c.Pitch.MaxFrequency = 10 }, "pitch frequency range"},
		{"lpc order too high", func(c *Config) { c.Formant.LPCOrder = 2000 }, "lpc_order"},
		{"retention too short", func(c *Config) { c.RetentionSeconds = 0.01 }, "retention"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.substr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
