// Package config provides configuration management for diettube using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8080
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultConnMaxIdleTime   = 30 * time.Minute
	defaultPollInterval      = 5 * time.Second
	defaultProbeTimeout      = 30 * time.Second
	defaultDurationTolerance = 0.01
	defaultMinOutputSize     = 10 * 1024
	defaultMarker            = "DietTube-Processed"
	defaultOutputExtension   = ".mkv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Library  LibraryConfig  `mapstructure:"library"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Encoder  EncoderConfig  `mapstructure:"encoder"`
	Verify   VerifyConfig   `mapstructure:"verify"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Scan     ScanConfig     `mapstructure:"scan"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file path. Empty means
	// {library.config_dir}/diettube.db.
	Path            string        `mapstructure:"path"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LibraryConfig holds the filesystem layout the pipeline operates on.
type LibraryConfig struct {
	// SourceDir is the root of the media tree to scan and convert in place.
	SourceDir string `mapstructure:"source_dir"`
	// TempDir holds the processing and trash areas.
	TempDir string `mapstructure:"temp_dir"`
	// ConfigDir holds the database and other durable state.
	ConfigDir string `mapstructure:"config_dir"`
	// VideoExtensions lists the file extensions treated as video files.
	VideoExtensions []string `mapstructure:"video_extensions"`
}

// ProcessingDir returns the temporary working area for in-flight encodes.
func (l LibraryConfig) ProcessingDir() string {
	return filepath.Join(l.TempDir, "processing")
}

// TrashDir returns the default archive area for replaced originals.
func (l LibraryConfig) TrashDir() string {
	return filepath.Join(l.TempDir, "trash")
}

// IsVideoFile reports whether the path has a configured video extension.
func (l LibraryConfig) IsVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range l.VideoExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// EncoderConfig holds encoder binary configuration.
type EncoderConfig struct {
	// FFmpegPath is the path to the ffmpeg binary (empty = resolve from PATH).
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	// FFprobePath is the path to the ffprobe binary (empty = resolve from PATH).
	FFprobePath string `mapstructure:"ffprobe_path"`
	// ProbeTimeout bounds a single ffprobe invocation.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// Marker is the metadata comment written to every output file and used
	// by the scanner as the authoritative "already processed" signal.
	Marker string `mapstructure:"marker"`
	// OutputExtension is the container extension for installed outputs.
	OutputExtension string `mapstructure:"output_extension"`
}

// VerifyConfig holds output verification tolerances.
type VerifyConfig struct {
	// DurationTolerance is the maximum relative duration difference between
	// source and output (0.01 = 1%).
	DurationTolerance float64 `mapstructure:"duration_tolerance"`
	// MinOutputSize is the minimum output file size; smaller outputs are
	// treated as truncated even when the encoder exited cleanly.
	MinOutputSize ByteSize `mapstructure:"min_output_size"`
}

// QueueConfig holds worker queue configuration.
type QueueConfig struct {
	// PollInterval is how often the worker polls for pending tasks.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ScanConfig holds scanner scheduling configuration.
type ScanConfig struct {
	// Schedule is a cron expression for periodic scans (empty = disabled).
	Schedule string `mapstructure:"schedule"`
	// OnStartup triggers a scan once the server is up.
	OnStartup bool `mapstructure:"on_startup"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with DIETTUBE_, using underscores for nesting.
// Example: DIETTUBE_LIBRARY_SOURCE_DIR=/source.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/diettube")
		v.AddConfigPath("$HOME/.diettube")
	}

	v.SetEnvPrefix("DIETTUBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("database.path", "")
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("library.source_dir", "/source")
	v.SetDefault("library.temp_dir", "/temp")
	v.SetDefault("library.config_dir", "/config")
	v.SetDefault("library.video_extensions", []string{
		".mkv", ".mp4", ".avi", ".mov", ".wmv", ".flv",
		".webm", ".m4v", ".ts", ".mts", ".m2ts",
	})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("encoder.ffmpeg_path", "")
	v.SetDefault("encoder.ffprobe_path", "")
	v.SetDefault("encoder.probe_timeout", defaultProbeTimeout)
	v.SetDefault("encoder.marker", defaultMarker)
	v.SetDefault("encoder.output_extension", defaultOutputExtension)

	v.SetDefault("verify.duration_tolerance", defaultDurationTolerance)
	v.SetDefault("verify.min_output_size", defaultMinOutputSize)

	v.SetDefault("queue.poll_interval", defaultPollInterval)

	v.SetDefault("scan.schedule", "")
	v.SetDefault("scan.on_startup", true)
}

// DatabaseFile returns the effective database file path.
func (c *Config) DatabaseFile() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Library.ConfigDir, "diettube.db")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Library.SourceDir == "" {
		return fmt.Errorf("library.source_dir is required")
	}
	if c.Library.TempDir == "" {
		return fmt.Errorf("library.temp_dir is required")
	}
	if c.Library.ConfigDir == "" {
		return fmt.Errorf("library.config_dir is required")
	}
	if len(c.Library.VideoExtensions) == 0 {
		return fmt.Errorf("library.video_extensions must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Encoder.Marker == "" {
		return fmt.Errorf("encoder.marker is required")
	}
	if !strings.HasPrefix(c.Encoder.OutputExtension, ".") {
		return fmt.Errorf("encoder.output_extension must start with a dot")
	}

	if c.Verify.DurationTolerance <= 0 || c.Verify.DurationTolerance >= 1 {
		return fmt.Errorf("verify.duration_tolerance must be in (0, 1)")
	}
	if c.Verify.MinOutputSize < 0 {
		return fmt.Errorf("verify.min_output_size must not be negative")
	}

	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue.poll_interval must be positive")
	}

	return nil
}
