package verify

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/ffmpeg"
)

type fakeProber struct {
	info *ffmpeg.MediaInfo
	err  error
}

func (f *fakeProber) Probe(_ context.Context, _ string) (*ffmpeg.MediaInfo, error) {
	return f.info, f.err
}

func writeFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.mkv")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func newVerifier(prober Prober) *Verifier {
	cfg := config.VerifyConfig{
		DurationTolerance: 0.01,
		MinOutputSize:     config.ByteSize(10240),
	}
	return New(prober, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestVerify_Pass(t *testing.T) {
	path := writeFile(t, 20000)
	v := newVerifier(&fakeProber{info: &ffmpeg.MediaInfo{Duration: 99.5, HasVideo: true}})

	result, err := v.Verify(context.Background(), path, 100.0)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), result.Size)
	assert.InDelta(t, 99.5, result.Duration, 0.001)
}

func TestVerify_MissingFile(t *testing.T) {
	v := newVerifier(&fakeProber{})
	_, err := v.Verify(context.Background(), filepath.Join(t.TempDir(), "gone.mkv"), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestVerify_TooSmall(t *testing.T) {
	path := writeFile(t, 512)
	v := newVerifier(&fakeProber{info: &ffmpeg.MediaInfo{Duration: 100, HasVideo: true}})

	_, err := v.Verify(context.Background(), path, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "512 bytes")
	assert.Contains(t, err.Error(), "10240 byte minimum")
}

func TestVerify_NoVideoStream(t *testing.T) {
	path := writeFile(t, 20000)
	v := newVerifier(&fakeProber{info: &ffmpeg.MediaInfo{Duration: 100, HasVideo: false}})

	_, err := v.Verify(context.Background(), path, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no video stream")
}

func TestVerify_DurationMismatch(t *testing.T) {
	path := writeFile(t, 20000)
	// 90s output for a 100s original is a 10% delta, well past 1%
	v := newVerifier(&fakeProber{info: &ffmpeg.MediaInfo{Duration: 90, HasVideo: true}})

	_, err := v.Verify(context.Background(), path, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "90.00s")
	assert.Contains(t, err.Error(), "100.00s")
}

func TestVerify_DurationWithinTolerance(t *testing.T) {
	path := writeFile(t, 20000)
	v := newVerifier(&fakeProber{info: &ffmpeg.MediaInfo{Duration: 100.9, HasVideo: true}})

	_, err := v.Verify(context.Background(), path, 100)
	assert.NoError(t, err)
}

func TestVerify_UnknownOriginalDurationSkipsCheck(t *testing.T) {
	path := writeFile(t, 20000)
	v := newVerifier(&fakeProber{info: &ffmpeg.MediaInfo{Duration: 55, HasVideo: true}})

	_, err := v.Verify(context.Background(), path, 0)
	assert.NoError(t, err)
}
