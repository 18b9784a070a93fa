package main

import (
	"os"

	"github.com/0xlemi/tunetrace/internal/config"
	"github.com/0xlemi/tunetrace/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	// Loaded before any subcommand runs
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tunetrace",
	Short: "Real-time pitch tracking and melody comparison",
	Long: `tunetrace detects the pitch of a monophonic input in real time and
compares it against pitch contours extracted from WAV recordings.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine; the environment is used as is.
		envLoaded := godotenv.Load() == nil

		if configPath == "" {
			configPath = os.Getenv("TUNETRACE_CONFIG")
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		} else if env := os.Getenv("TUNETRACE_LOG_LEVEL"); env != "" {
			loaded.LogLevel = env
		}
		level, err := logging.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}

		l := logging.NewDefaultLogger()
		l.SetLevel(level)
		logging.SetGlobalLogger(l)

		cfg = loaded
		logging.Debug("configuration loaded", logging.Fields{"path": configPath, "dotenv": envLoaded})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file overlaid on the defaults")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
