package ffmpeg

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats is a point-in-time resource usage sample of an encoder
// process.
type ProcessStats struct {
	PID           int32   `json:"pid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryRSS     uint64  `json:"memory_rss_bytes"`
	MemoryPercent float32 `json:"memory_percent"`
}

// SampleProcess reads resource usage for a running process. Missing fields
// are left zero; a vanished process is an error.
func SampleProcess(ctx context.Context, pid int32) (*ProcessStats, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}

	stats := &ProcessStats{PID: pid}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		stats.MemoryRSS = mem.RSS
	}
	if pct, err := proc.MemoryPercentWithContext(ctx); err == nil {
		stats.MemoryPercent = pct
	}
	return stats, nil
}
