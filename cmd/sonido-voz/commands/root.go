package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voz/config"
	"github.com/RyanBlaney/sonido-voz/logging"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sonido-voz",
	Short: "Real-time vocal analysis",
	Long: `sonido-voz tracks pitch, formants, voice quality and spectral features
of a voice, from files or from a live websocket stream.

Configuration is read from a YAML file (--config); keys that are absent keep
their defaults.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging sends all log output to stderr so stdout carries only records
func setupLogging() error {
	level := flagLogLevel
	if level == "" {
		level = "info"
		if flagConfig != "" {
			if cfg, err := config.Load(flagConfig); err == nil && cfg.LogLevel != "" {
				level = cfg.LogLevel
			}
		}
	}

	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}

	logger := logging.NewWriterLogger(os.Stderr, os.Stderr, isTerminal(os.Stderr))
	logger.SetLevel(lvl)
	logging.SetGlobalLogger(logger)
	return nil
}

func isTerminal(f *os.File) bool {
	if info, _ := f.Stat(); info != nil {
		return info.Mode()&os.ModeCharDevice != 0
	}
	return false
}

// loadConfig returns the configuration named by --config, or the defaults
func loadConfig() (*config.Config, error) {
	if flagConfig == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
