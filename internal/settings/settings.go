// Package settings manages runtime-tunable encoder and library settings.
//
// Settings are persisted as a single JSON blob and exposed to consumers as
// immutable versioned snapshots: a task reads one snapshot when it starts and
// uses it for its entire lifetime, so a mid-task settings update never changes
// the parameters of work already in flight.
package settings

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// OriginalFileStrategy controls where original files go after a successful
// install.
type OriginalFileStrategy string

const (
	// StrategyTrash moves originals into the managed trash directory.
	StrategyTrash OriginalFileStrategy = "trash"
	// StrategyArchive moves originals into a user-configured archive directory.
	StrategyArchive OriginalFileStrategy = "archive"
)

// RuntimeSettings holds the knobs that can be changed while the service runs.
type RuntimeSettings struct {
	// VideoPreset is the SVT-AV1 preset (0 slowest, 13 fastest).
	VideoPreset int `json:"video_preset"`
	// VideoCRF is the constant rate factor (0-63, lower is higher quality).
	VideoCRF int `json:"video_crf"`
	// FilmGrain is the SVT-AV1 film-grain synthesis level (0-50, 0 disables).
	FilmGrain int `json:"film_grain"`
	// BitDepth selects the output pixel format (8 or 10).
	BitDepth int `json:"bit_depth"`
	// AudioBitrate is the Opus target bitrate per stream, e.g. "128k".
	AudioBitrate string `json:"audio_bitrate"`
	// MaxThreads caps encoder threads (0 = let the encoder decide).
	MaxThreads int `json:"max_threads"`

	// MaxLongSide caps the longer output dimension in pixels (0 = no cap).
	MaxLongSide int `json:"max_long_side"`
	// MaxShortSide caps the shorter output dimension in pixels (0 = no cap).
	MaxShortSide int `json:"max_short_side"`
	// MaxFPS caps the output frame rate (0 = no cap).
	MaxFPS float64 `json:"max_fps"`

	// OriginalFileStrategy chooses trash or archive for processed originals.
	OriginalFileStrategy OriginalFileStrategy `json:"original_file_strategy"`
	// ArchiveDir is the archive root, required when the strategy is archive.
	ArchiveDir string `json:"archive_dir"`

	// ScanIgnorePatterns are glob patterns matched against relative paths;
	// matching files are skipped by the scanner.
	ScanIgnorePatterns []string `json:"scan_ignore_patterns"`

	// ExtraArgs is a shell-style string of additional encoder arguments
	// appended after the generated ones.
	ExtraArgs string `json:"extra_args"`

	// StartPaused pauses the queue on service startup.
	StartPaused bool `json:"start_paused"`
}

// Defaults returns the settings used when nothing has been persisted yet.
func Defaults() RuntimeSettings {
	return RuntimeSettings{
		VideoPreset:          6,
		VideoCRF:             32,
		FilmGrain:            8,
		BitDepth:             10,
		AudioBitrate:         "128k",
		MaxThreads:           0,
		MaxLongSide:          1920,
		MaxShortSide:         1080,
		MaxFPS:               30,
		OriginalFileStrategy: StrategyTrash,
		ScanIgnorePatterns:   []string{},
		StartPaused:          false,
	}
}

// Validate checks that every field is within its allowed range.
func (s *RuntimeSettings) Validate() error {
	if s.VideoPreset < 0 || s.VideoPreset > 13 {
		return fmt.Errorf("video_preset must be between 0 and 13, got %d", s.VideoPreset)
	}
	if s.VideoCRF < 0 || s.VideoCRF > 63 {
		return fmt.Errorf("video_crf must be between 0 and 63, got %d", s.VideoCRF)
	}
	if s.FilmGrain < 0 || s.FilmGrain > 50 {
		return fmt.Errorf("film_grain must be between 0 and 50, got %d", s.FilmGrain)
	}
	if s.BitDepth != 8 && s.BitDepth != 10 {
		return fmt.Errorf("bit_depth must be 8 or 10, got %d", s.BitDepth)
	}
	if err := validateBitrate(s.AudioBitrate); err != nil {
		return err
	}
	if s.MaxThreads < 0 {
		return fmt.Errorf("max_threads must not be negative, got %d", s.MaxThreads)
	}
	if s.MaxLongSide < 0 {
		return fmt.Errorf("max_long_side must not be negative, got %d", s.MaxLongSide)
	}
	if s.MaxShortSide < 0 {
		return fmt.Errorf("max_short_side must not be negative, got %d", s.MaxShortSide)
	}
	if s.MaxFPS < 0 {
		return fmt.Errorf("max_fps must not be negative, got %g", s.MaxFPS)
	}
	switch s.OriginalFileStrategy {
	case StrategyTrash:
	case StrategyArchive:
		if strings.TrimSpace(s.ArchiveDir) == "" {
			return fmt.Errorf("archive_dir is required when original_file_strategy is %q", StrategyArchive)
		}
	default:
		return fmt.Errorf("original_file_strategy must be %q or %q, got %q",
			StrategyTrash, StrategyArchive, s.OriginalFileStrategy)
	}
	for _, pattern := range s.ScanIgnorePatterns {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("scan_ignore_patterns must not contain empty patterns")
		}
	}
	return nil
}

func validateBitrate(v string) error {
	if v == "" {
		return fmt.Errorf("audio_bitrate must not be empty")
	}
	n := strings.TrimSuffix(strings.ToLower(v), "k")
	if _, err := strconv.Atoi(n); err != nil {
		return fmt.Errorf("audio_bitrate must look like \"128k\", got %q", v)
	}
	return nil
}

// Clone returns a deep copy so a snapshot never aliases caller slices.
func (s RuntimeSettings) Clone() RuntimeSettings {
	out := s
	out.ScanIgnorePatterns = slices.Clone(s.ScanIgnorePatterns)
	return out
}

// Snapshot is an immutable view of the settings at a point in time. Consumers
// must not mutate it.
type Snapshot struct {
	RuntimeSettings
	// Version increments on every accepted update.
	Version int64
}
