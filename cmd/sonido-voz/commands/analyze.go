package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voz/algorithms/common"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/tracker"
)

var (
	flagAnalyzeFormat      string
	flagAnalyzeOutput      string
	flagAnalyzePitchOnly   bool
	flagAnalyzeCalibration string
	flagAnalyzeAccurateURL string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio-file>",
	Short: "Analyze a recording frame by frame",
	Long: `Run the full analysis pipeline over a recording and write one record per
frame to stdout (or --output).

WAV files are decoded natively and analyzed at their own sample rate; other
formats need ffmpeg and are resampled to the configured rate.

Example:
  sonido-voz analyze take.wav --format json --calibration calibration.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&flagAnalyzeFormat, "format", "f", "json", "Output format (json, msgpack)")
	analyzeCmd.Flags().StringVarP(&flagAnalyzeOutput, "output", "o", "", "Output file (default stdout)")
	analyzeCmd.Flags().BoolVar(&flagAnalyzePitchOnly, "pitch-only", false, "Skip formant, voice quality and spectral analysis")
	analyzeCmd.Flags().StringVar(&flagAnalyzeCalibration, "calibration", "", "Calibration file from 'calibrate'")
	analyzeCmd.Flags().StringVar(&flagAnalyzeAccurateURL, "crepe-url", "", "CREPE server for the accurate pitch path")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.WithFields(logging.Fields{
		"component": "analyze",
		"file":      args[0],
	})

	format, err := tracker.ParseFormat(flagAnalyzeFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAnalyzePitchOnly {
		cfg.PitchOnly = true
	}
	if flagAnalyzeAccurateURL != "" {
		cfg.Pitch.AccurateURL = flagAnalyzeAccurateURL
	}

	audio, err := decodeAudio(ctx, args[0], cfg.SampleRate)
	if err != nil {
		return err
	}
	cfg.SampleRate = audio.SampleRate

	var calib *calibration
	if flagAnalyzeCalibration != "" {
		if calib, err = loadCalibration(flagAnalyzeCalibration); err != nil {
			return err
		}
	}

	// records are collected from ProcessBuffer, not the channels
	t, err := tracker.New(cfg, tracker.WithStreams(tracker.StreamNone))
	if err != nil {
		return err
	}
	calib.apply(t)

	var w io.Writer = os.Stdout
	if flagAnalyzeOutput != "" {
		f, err := os.Create(flagAnalyzeOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc, err := tracker.NewEncoder(w, format)
	if err != nil {
		return err
	}

	measurements := t.ProcessBuffer(ctx, audio.Float32())
	var voicedHz []float64
	for _, m := range measurements {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if m.Voiced {
			voicedHz = append(voicedHz, m.PitchHz)
		}
	}

	stats := t.Stats()
	logger.Info("Analysis complete", logging.Fields{
		"duration":        audio.Duration,
		"frames":          stats.Frames,
		"active_frames":   stats.ActiveFrames,
		"voiced_frames":   len(voicedHz),
		"median_pitch_hz": common.Median(voicedHz),
		"accurate_frames": stats.AccurateFrames,
		"fallbacks":       stats.Fallbacks,
		"avg_latency":     stats.AverageLatency,
	})
	return nil
}
