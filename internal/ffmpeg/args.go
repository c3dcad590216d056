package ffmpeg

import (
	"fmt"
	"math"
	"strconv"

	"github.com/google/shlex"

	"github.com/diettube/diettube/internal/settings"
)

// BuildTranscodeArgs constructs the complete ffmpeg argument list for a
// transcode. It is a pure function of its inputs so the same settings
// snapshot always produces the same command, which also lets the settings
// preview endpoint show exactly what a task would run.
func BuildTranscodeArgs(input, output string, info MediaInfo, s settings.Snapshot, marker string) ([]string, error) {
	args := []string{
		"-hide_banner",
		"-y",
		"-i", input,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-map", "0:s?",
		"-map", "0:t?",
	}

	args = append(args,
		"-c:v", "libsvtav1",
		"-preset", strconv.Itoa(s.VideoPreset),
		"-crf", strconv.Itoa(s.VideoCRF),
		"-svtav1-params", fmt.Sprintf("film-grain=%d", s.FilmGrain),
		"-pix_fmt", pixFmt(s.BitDepth),
	)

	if filter := buildVideoFilter(info, s); filter != "" {
		args = append(args, "-vf", filter)
	}

	args = append(args,
		"-c:a", "libopus",
		"-b:a", s.AudioBitrate,
		"-vbr", "on",
		"-c:s", "copy",
		"-c:t", "copy",
	)

	args = append(args,
		"-map_metadata", "0",
		"-metadata", "comment="+marker,
	)

	if s.MaxThreads > 0 {
		args = append(args, "-threads", strconv.Itoa(s.MaxThreads))
	}

	if s.ExtraArgs != "" {
		extra, err := shlex.Split(s.ExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("failed to parse extra args: %w", err)
		}
		args = append(args, extra...)
	}

	args = append(args,
		"-progress", "pipe:1",
		"-nostats",
		output,
	)

	return args, nil
}

func pixFmt(bitDepth int) string {
	if bitDepth == 10 {
		return "yuv420p10le"
	}
	return "yuv420p"
}

// buildVideoFilter returns a -vf chain applying the resolution and frame rate
// caps, or "" when the source already fits within them.
func buildVideoFilter(info MediaInfo, s settings.Snapshot) string {
	var filters []string

	if scale := buildScaleFilter(info.Width, info.Height, s.MaxLongSide, s.MaxShortSide); scale != "" {
		filters = append(filters, scale)
	}
	if s.MaxFPS > 0 && info.FrameRate > s.MaxFPS {
		filters = append(filters, fmt.Sprintf("fps=%g", s.MaxFPS))
	}

	switch len(filters) {
	case 0:
		return ""
	case 1:
		return filters[0]
	default:
		return filters[0] + "," + filters[1]
	}
}

// buildScaleFilter downscales so the longer side fits maxLong and the shorter
// side fits maxShort, preserving aspect ratio and even dimensions. Upscaling
// never happens.
func buildScaleFilter(width, height, maxLong, maxShort int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	long, short := width, height
	if height > width {
		long, short = height, width
	}

	ratio := 1.0
	if maxLong > 0 && long > maxLong {
		ratio = float64(maxLong) / float64(long)
	}
	if maxShort > 0 && float64(short)*ratio > float64(maxShort) {
		ratio = float64(maxShort) / float64(short)
	}
	if ratio >= 1.0 {
		return ""
	}

	newWidth := evenDown(float64(width) * ratio)
	newHeight := evenDown(float64(height) * ratio)
	return fmt.Sprintf("scale=%d:%d", newWidth, newHeight)
}

func evenDown(v float64) int {
	n := int(math.Round(v))
	if n%2 != 0 {
		n--
	}
	if n < 2 {
		n = 2
	}
	return n
}
