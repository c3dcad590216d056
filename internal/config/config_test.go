package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/source", cfg.Library.SourceDir)
	assert.Equal(t, "DietTube-Processed", cfg.Encoder.Marker)
	assert.Equal(t, ".mkv", cfg.Encoder.OutputExtension)
	assert.InDelta(t, 0.01, cfg.Verify.DurationTolerance, 1e-9)
	assert.Equal(t, int64(10240), cfg.Verify.MinOutputSize.Bytes())
	assert.Equal(t, 5*time.Second, cfg.Queue.PollInterval)
	assert.True(t, cfg.Scan.OnStartup)

	require.NoError(t, cfg.Validate())
}

func TestLibraryPaths(t *testing.T) {
	lib := LibraryConfig{TempDir: "/temp"}

	assert.Equal(t, filepath.Join("/temp", "processing"), lib.ProcessingDir())
	assert.Equal(t, filepath.Join("/temp", "trash"), lib.TrashDir())
}

func TestIsVideoFile(t *testing.T) {
	lib := LibraryConfig{VideoExtensions: []string{".mkv", ".mp4"}}

	assert.True(t, lib.IsVideoFile("/media/show/episode.mkv"))
	assert.True(t, lib.IsVideoFile("/media/UPPER.MP4"))
	assert.False(t, lib.IsVideoFile("/media/notes.txt"))
	assert.False(t, lib.IsVideoFile("/media/noext"))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing source dir", func(c *Config) { c.Library.SourceDir = "" }},
		{"missing temp dir", func(c *Config) { c.Library.TempDir = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty marker", func(c *Config) { c.Encoder.Marker = "" }},
		{"bad output extension", func(c *Config) { c.Encoder.OutputExtension = "mkv" }},
		{"zero tolerance", func(c *Config) { c.Verify.DurationTolerance = 0 }},
		{"tolerance too large", func(c *Config) { c.Verify.DurationTolerance = 1.5 }},
		{"zero poll interval", func(c *Config) { c.Queue.PollInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
library:
  source_dir: /media/library
verify:
  min_output_size: 1MB
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "/media/library", cfg.Library.SourceDir)
	assert.Equal(t, int64(1024*1024), cfg.Verify.MinOutputSize.Bytes())
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset values fall back to defaults
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestDatabaseFile(t *testing.T) {
	cfg := defaultConfig(t)
	assert.Equal(t, filepath.Join("/config", "diettube.db"), cfg.DatabaseFile())

	cfg.Database.Path = "/data/other.db"
	assert.Equal(t, "/data/other.db", cfg.DatabaseFile())
}
