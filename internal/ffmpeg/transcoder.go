package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// stderrTailLines bounds how much encoder stderr is kept for error messages.
const stderrTailLines = 40

// ErrCancelled is returned when a transcode was stopped by context
// cancellation rather than an encoder failure.
var ErrCancelled = errors.New("transcode cancelled")

// ProgressFunc receives incremental progress reports during a transcode.
type ProgressFunc func(Progress)

// Transcoder runs ffmpeg as a supervised subprocess.
type Transcoder struct {
	binaryPath string
	log        *slog.Logger
}

// NewTranscoder creates a transcoder using the given ffmpeg binary.
func NewTranscoder(binaryPath string, log *slog.Logger) *Transcoder {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Transcoder{
		binaryPath: binaryPath,
		log:        log.With("component", "transcoder"),
	}
}

// Job describes one transcode run.
type Job struct {
	// Args is the full ffmpeg argument list, usually from BuildTranscodeArgs.
	Args []string
	// Output is the file being written; it is removed on failure.
	Output string
	// TotalDuration in seconds scales the percent figure, 0 disables it.
	TotalDuration float64
	// OnProgress, when set, receives incremental progress reports.
	OnProgress ProgressFunc
	// OnStart, when set, is called with the encoder PID once it is running.
	OnStart func(pid int32)
}

// Run executes ffmpeg for the job. On any failure, including cancellation,
// the partial output file is removed; a cancelled run returns an error
// wrapping ErrCancelled.
func (t *Transcoder) Run(ctx context.Context, job Job) error {
	cmd := t.command(ctx, job.Args)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	t.log.Info("ffmpeg started", "pid", cmd.Process.Pid, "output", job.Output)
	if job.OnStart != nil {
		job.OnStart(int32(cmd.Process.Pid))
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		parser := newProgressParser(job.TotalDuration)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if report, ok := parser.Feed(scanner.Text()); ok && job.OnProgress != nil {
				job.OnProgress(report)
			}
		}
	}()

	tail := newTailBuffer(stderrTailLines)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			tail.Add(scanner.Text())
		}
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		t.removePartial(job.Output)
		return fmt.Errorf("%w: %s", ErrCancelled, ctx.Err())
	}
	if waitErr != nil {
		t.removePartial(job.Output)
		detail := tail.String()
		if detail == "" {
			detail = waitErr.Error()
		}
		return fmt.Errorf("ffmpeg failed: %s", detail)
	}

	t.log.Info("ffmpeg finished", "output", job.Output)
	return nil
}

// command builds the supervised ffmpeg command. Cancellation sends SIGTERM so
// the encoder can finalize and exit; SIGKILL only after the wait delay.
func (t *Transcoder) command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, t.binaryPath, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second
	return cmd
}

// removePartial deletes an incomplete output file. A failed removal is logged
// but not returned: crash recovery wipes the processing directory anyway.
func (t *Transcoder) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		t.log.Warn("failed to remove partial output", "path", path, "error", err)
	}
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Add(line string) {
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	if b == nil {
		return ""
	}
	return strings.Join(b.lines, "\n")
}
