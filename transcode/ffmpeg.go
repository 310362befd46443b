package transcode

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-voz/logging"
)

// FFmpegConfig holds decoder configuration
type FFmpegConfig struct {
	TargetSampleRate int           `yaml:"target_sample_rate"`
	MaxDuration      time.Duration `yaml:"max_duration"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	Timeout          time.Duration `yaml:"timeout"`
}

// DefaultFFmpegConfig returns the default decoder configuration
func DefaultFFmpegConfig() *FFmpegConfig {
	return &FFmpegConfig{
		TargetSampleRate: 48000,
		MaxDuration:      0, // no limit
		FFmpegPath:       "ffmpeg",
		Timeout:          30 * time.Second,
	}
}

// FFmpegDecoder decodes arbitrary audio files to mono float PCM by piping
// them through an ffmpeg subprocess.
type FFmpegDecoder struct {
	config *FFmpegConfig
}

// NewFFmpegDecoder creates a decoder; nil config uses the defaults
func NewFFmpegDecoder(config *FFmpegConfig) *FFmpegDecoder {
	if config == nil {
		config = DefaultFFmpegConfig()
	}
	return &FFmpegDecoder{config: config}
}

// Available reports whether the configured ffmpeg binary can be found
func (d *FFmpegDecoder) Available() bool {
	_, err := exec.LookPath(d.config.FFmpegPath)
	return err == nil
}

// DecodeFile decodes filename into mono PCM at the target sample rate
func (d *FFmpegDecoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	if d.config.TargetSampleRate <= 0 {
		return nil, fmt.Errorf("invalid target sample rate %d", d.config.TargetSampleRate)
	}

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := append([]string{"-i", filename}, d.buildArgs()...)
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	pcm, err := DecodeFloat32LE(output)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg output: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no audio decoded from %s", filename)
	}

	samples := make([]float64, len(pcm))
	for i, s := range pcm {
		samples[i] = float64(s)
	}

	logger.Debug("Decoded audio", logging.Fields{
		"samples":     len(samples),
		"sample_rate": d.config.TargetSampleRate,
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Channels:   1,
		Duration:   durationOf(len(samples), d.config.TargetSampleRate),
		Source:     filename,
	}, nil
}

func (d *FFmpegDecoder) buildArgs() []string {
	args := []string{
		"-f", "f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}
	return append(args, "-v", "error", "pipe:1")
}
