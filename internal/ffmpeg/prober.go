// Package ffmpeg wraps the ffmpeg and ffprobe binaries: media probing,
// encoder argument construction, and supervised transcode runs with
// incremental progress reporting.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeResult contains the ffprobe output we care about.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container format information.
type ProbeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

// ProbeStream contains per-stream information.
type ProbeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"` // video, audio, subtitle, data, attachment
	Width        int               `json:"width,omitempty"`
	Height       int               `json:"height,omitempty"`
	PixFmt       string            `json:"pix_fmt,omitempty"`
	AvgFrameRate string            `json:"avg_frame_rate,omitempty"`
	Channels     int               `json:"channels,omitempty"`
	Duration     string            `json:"duration,omitempty"`
	Disposition  map[string]int    `json:"disposition,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// MediaInfo is the condensed view the rest of the service works with.
type MediaInfo struct {
	Duration  float64 `json:"duration"`
	Size      int64   `json:"size"`
	HasVideo  bool    `json:"has_video"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
	Comment   string  `json:"comment,omitempty"`
}

// HasMarker reports whether the container comment tag carries the given
// processed marker.
func (m MediaInfo) HasMarker(marker string) bool {
	return marker != "" && strings.Contains(m.Comment, marker)
}

// Prober runs ffprobe against media files.
type Prober struct {
	binaryPath string
	timeout    time.Duration
}

// NewProber creates a prober using the given ffprobe binary.
func NewProber(binaryPath string, timeout time.Duration) *Prober {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{binaryPath: binaryPath, timeout: timeout}
}

// Probe inspects a media file and returns its condensed info. A file ffprobe
// cannot parse at all is an error; a parseable file without a video stream is
// not, the caller decides what that means.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binaryPath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		// a dying ffprobe reports "signal: killed"; surface the context
		// error instead so callers can tell interruption from failure
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("ffprobe timed out after %s for %s: %w", p.timeout, path, ctxErr)
			}
			return nil, fmt.Errorf("ffprobe interrupted for %s: %w", path, ctxErr)
		}
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}

	return condense(&result), nil
}

func condense(r *ProbeResult) *MediaInfo {
	info := &MediaInfo{}

	if d, err := strconv.ParseFloat(r.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if s, err := strconv.ParseInt(r.Format.Size, 10, 64); err == nil {
		info.Size = s
	}
	for key, value := range r.Format.Tags {
		if strings.EqualFold(key, "comment") {
			info.Comment = value
			break
		}
	}

	for _, stream := range r.Streams {
		if stream.CodecType != "video" {
			continue
		}
		// Cover art shows up as a video stream with attached_pic set
		if stream.Disposition["attached_pic"] == 1 {
			continue
		}
		info.HasVideo = true
		info.Width = stream.Width
		info.Height = stream.Height
		info.FrameRate = parseFrameRate(stream.AvgFrameRate)
		break
	}

	return info
}

// parseFrameRate converts an ffprobe rational like "30000/1001" to fps.
func parseFrameRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return 0
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
