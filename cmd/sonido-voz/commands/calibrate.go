package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/tracker"
)

var (
	flagCalibrateVoice  string
	flagCalibrateOutput string
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate <ambient-file>",
	Short: "Measure the noise floor and, optionally, the user's vocal range",
	Long: `Calibrate from a recording of the room while the user is silent (about one
second is enough) and, with --voice, from a recording of the user singing or
speaking across their range for at least the configured calibration time.

The result is YAML, written to stdout or --output, and is accepted by
'analyze' and 'serve' through --calibration.

Example:
  sonido-voz calibrate room.wav --voice scale.wav -o calibration.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVar(&flagCalibrateVoice, "voice", "", "Voice recording for the range profile")
	calibrateCmd.Flags().StringVarP(&flagCalibrateOutput, "output", "o", "", "Output file (default stdout)")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ambient, err := decodeAudio(ctx, args[0], cfg.SampleRate)
	if err != nil {
		return err
	}
	cfg.SampleRate = ambient.SampleRate

	// analyze only the configured calibration span
	pcm := ambient.PCM
	if n := int(cfg.VAD.CalibrationSeconds * float64(ambient.SampleRate)); n > 0 && n < len(pcm) {
		pcm = pcm[:n]
	}

	t, err := tracker.New(cfg)
	if err != nil {
		return err
	}
	floor, err := t.CalibrateNoiseFloor(pcm)
	if err != nil {
		return fmt.Errorf("noise floor: %w", err)
	}

	result := &calibration{
		SampleRate: ambient.SampleRate,
		NoiseFloor: floor,
	}

	if flagCalibrateVoice != "" {
		voice, err := decodeAudio(ctx, flagCalibrateVoice, ambient.SampleRate)
		if err != nil {
			return err
		}
		if voice.SampleRate != cfg.SampleRate {
			cfg.SampleRate = voice.SampleRate
		}
		profile, err := tracker.CreateUserProfile(voice.PCM, voice.SampleRate, cfg)
		if err != nil {
			return fmt.Errorf("voice profile: %w", err)
		}
		result.Profile = profile
	}

	logging.Info("Calibration complete", logging.Fields{
		"noise_floor": floor,
		"profile":     result.Profile != nil,
	})
	return result.save(flagCalibrateOutput)
}
