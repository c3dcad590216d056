// Package cmd implements the CLI commands for diettube.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/observability"
	"github.com/diettube/diettube/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "diettube",
	Short:   "In-place media library re-encoder",
	Version: version.Short(),
	Long: `diettube watches a media library, re-encodes every video file to
AV1/Opus, and installs the smaller output in place of the original.

Processed files carry a container metadata marker so they are never
picked up twice, replaced originals are kept in a trash area until
explicitly emptied, and every completed conversion can be rolled back.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/diettube, $HOME/.diettube)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// loadConfig reads the configuration and applies CLI flag overrides.
// Priority: CLI flag > env var > config file > default; flags are not
// bound to viper because a bound flag's default value would always win
// over env and file values.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := rootCmd.PersistentFlags()
	overrideString(flags, "log-level", &cfg.Logging.Level)
	overrideString(flags, "log-format", &cfg.Logging.Format)

	// "warning" is accepted as an alias for "warn"
	if strings.EqualFold(cfg.Logging.Level, "warning") {
		cfg.Logging.Level = "warn"
	}

	return cfg, nil
}

// overrideString copies a flag value into dst only when the user set it.
func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if flags.Changed(name) {
		if v, err := flags.GetString(name); err == nil {
			*dst = v
		}
	}
}

// initLogging builds the process-wide logger from the loaded configuration.
func initLogging(cfg *config.Config) {
	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)
}
