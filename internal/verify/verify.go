// Package verify gates the install step: a transcoded file replaces its
// original only after passing every check here.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/ffmpeg"
)

// Prober is the probe surface the verifier needs.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// Result carries the measured properties of a verified file.
type Result struct {
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"`
}

// Verifier checks transcoded output before installation.
type Verifier struct {
	prober Prober
	cfg    config.VerifyConfig
	log    *slog.Logger
}

// New creates a verifier.
func New(prober Prober, cfg config.VerifyConfig, log *slog.Logger) *Verifier {
	return &Verifier{
		prober: prober,
		cfg:    cfg,
		log:    log.With("component", "verify"),
	}
}

// Verify checks that the output file exists, is at least the minimum size,
// contains a video stream, and matches the original duration within the
// configured tolerance. Every failure message states what was measured
// against what was expected.
func (v *Verifier) Verify(ctx context.Context, path string, originalDuration float64) (*Result, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("output file does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to stat output file %s: %w", path, err)
	}

	minSize := v.cfg.MinOutputSize.Bytes()
	if stat.Size() < minSize {
		return nil, fmt.Errorf("output file is %d bytes, below the %d byte minimum", stat.Size(), minSize)
	}

	info, err := v.prober.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("output file failed probing: %w", err)
	}
	if !info.HasVideo {
		return nil, fmt.Errorf("output file has no video stream: %s", path)
	}

	if originalDuration > 0 {
		delta := math.Abs(info.Duration-originalDuration) / originalDuration
		if delta > v.cfg.DurationTolerance {
			return nil, fmt.Errorf("output duration %.2fs differs from original %.2fs by %.2f%%, tolerance is %.2f%%",
				info.Duration, originalDuration, delta*100, v.cfg.DurationTolerance*100)
		}
	}

	v.log.Debug("verification passed", "path", path, "size", stat.Size(), "duration", info.Duration)
	return &Result{Size: stat.Size(), Duration: info.Duration}, nil
}
