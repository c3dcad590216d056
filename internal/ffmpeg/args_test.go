package ffmpeg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diettube/diettube/internal/settings"
)

func defaultSnapshot() settings.Snapshot {
	return settings.Snapshot{RuntimeSettings: settings.Defaults(), Version: 1}
}

func argsString(t *testing.T, info MediaInfo, s settings.Snapshot) string {
	t.Helper()
	args, err := BuildTranscodeArgs("/in.mkv", "/out.mkv", info, s, "DietTube-Processed")
	require.NoError(t, err)
	return strings.Join(args, " ")
}

func TestBuildTranscodeArgs_Core(t *testing.T) {
	info := MediaInfo{Duration: 120, Width: 1280, Height: 720, FrameRate: 24}
	joined := argsString(t, info, defaultSnapshot())

	assert.Contains(t, joined, "-i /in.mkv")
	assert.Contains(t, joined, "-map 0:v:0 -map 0:a? -map 0:s? -map 0:t?")
	assert.Contains(t, joined, "-c:v libsvtav1 -preset 6 -crf 32 -svtav1-params film-grain=8 -pix_fmt yuv420p10le")
	assert.Contains(t, joined, "-c:a libopus -b:a 128k -vbr on")
	assert.Contains(t, joined, "-c:s copy -c:t copy")
	assert.Contains(t, joined, "-map_metadata 0 -metadata comment=DietTube-Processed")
	assert.Contains(t, joined, "-progress pipe:1 -nostats")
	assert.True(t, strings.HasSuffix(joined, "/out.mkv"))
}

func TestBuildTranscodeArgs_Deterministic(t *testing.T) {
	info := MediaInfo{Duration: 120, Width: 3840, Height: 2160, FrameRate: 60}
	s := defaultSnapshot()

	first, err := BuildTranscodeArgs("/in.mkv", "/out.mkv", info, s, "m")
	require.NoError(t, err)
	second, err := BuildTranscodeArgs("/in.mkv", "/out.mkv", info, s, "m")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildTranscodeArgs_EightBit(t *testing.T) {
	s := defaultSnapshot()
	s.BitDepth = 8
	joined := argsString(t, MediaInfo{Width: 1280, Height: 720}, s)
	assert.Contains(t, joined, "-pix_fmt yuv420p")
	assert.NotContains(t, joined, "yuv420p10le")
}

func TestBuildTranscodeArgs_Caps(t *testing.T) {
	s := defaultSnapshot() // max 1920x1080 @ 30fps

	t.Run("downscale 4k", func(t *testing.T) {
		joined := argsString(t, MediaInfo{Width: 3840, Height: 2160, FrameRate: 24}, s)
		assert.Contains(t, joined, "-vf scale=1920:1080")
	})

	t.Run("fps cap", func(t *testing.T) {
		joined := argsString(t, MediaInfo{Width: 1920, Height: 1080, FrameRate: 60}, s)
		assert.Contains(t, joined, "-vf fps=30")
	})

	t.Run("both", func(t *testing.T) {
		joined := argsString(t, MediaInfo{Width: 3840, Height: 2160, FrameRate: 60}, s)
		assert.Contains(t, joined, "-vf scale=1920:1080,fps=30")
	})

	t.Run("no upscale", func(t *testing.T) {
		joined := argsString(t, MediaInfo{Width: 1280, Height: 720, FrameRate: 24}, s)
		assert.NotContains(t, joined, "-vf")
	})

	t.Run("portrait respects short side", func(t *testing.T) {
		joined := argsString(t, MediaInfo{Width: 2160, Height: 3840, FrameRate: 24}, s)
		assert.Contains(t, joined, "-vf scale=1080:1920")
	})
}

func TestBuildTranscodeArgs_Threads(t *testing.T) {
	s := defaultSnapshot()
	s.MaxThreads = 4
	joined := argsString(t, MediaInfo{}, s)
	assert.Contains(t, joined, "-threads 4")

	s.MaxThreads = 0
	joined = argsString(t, MediaInfo{}, s)
	assert.NotContains(t, joined, "-threads")
}

func TestBuildTranscodeArgs_ExtraArgs(t *testing.T) {
	s := defaultSnapshot()
	s.ExtraArgs = `-tune 0 -metadata title="My Show"`

	args, err := BuildTranscodeArgs("/in.mkv", "/out.mkv", MediaInfo{}, s, "m")
	require.NoError(t, err)
	assert.Contains(t, args, "-tune")
	assert.Contains(t, args, "title=My Show")

	s.ExtraArgs = `-bad "unterminated`
	_, err = BuildTranscodeArgs("/in.mkv", "/out.mkv", MediaInfo{}, s, "m")
	assert.Error(t, err)
}

func TestBuildScaleFilter_EvenDimensions(t *testing.T) {
	// 1279x719 source scaled down must stay even
	filter := buildScaleFilter(1281, 721, 640, 0)
	assert.Equal(t, "scale=640:360", filter)
}
