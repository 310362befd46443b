package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-voz/tracker"
)

// calibration is the file written by "calibrate" and read by "analyze" and
// "serve"
type calibration struct {
	SampleRate int                       `yaml:"sample_rate"`
	NoiseFloor float64                   `yaml:"noise_floor"`
	Profile    *tracker.UserVoiceProfile `yaml:"profile,omitempty"`
}

func loadCalibration(path string) (*calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}
	var c calibration
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	if c.Profile != nil {
		if err := c.Profile.Validate(); err != nil {
			return nil, fmt.Errorf("calibration %s: %w", path, err)
		}
	}
	return &c, nil
}

func (c *calibration) save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// apply installs the calibration on a tracker
func (c *calibration) apply(t *tracker.Tracker) {
	if c == nil {
		return
	}
	t.SetNoiseFloor(c.NoiseFloor)
	if c.Profile != nil {
		t.SetProfile(c.Profile)
	}
}
