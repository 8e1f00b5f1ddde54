package cmd

import (
	"os"
	"strings"

	"github.com/SteveArevalo/CS499-CapStone/config"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// cfg is loaded once by the root command before any subcommand runs
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "shelter",
	Short: "Austin Animal Center records service",
	Long: `Shelter manages animal outcome records stored in MongoDB and reports
adoption trends by breed and by month.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.SetConfigFile(cfgFile)

		loaded, err := config.LoadConfig(".")
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		cfg = loaded

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		setupLogging(cfg.Logging, cfg.Environment)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// setupLogging configures the global logger. Development always logs to a
// console writer.
func setupLogging(lc config.LoggingConfig, environment string) {
	level, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if lc.Format == "console" || environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
