package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/diettube/diettube/internal/version"
)

// HealthHandler serves liveness and system information.
type HealthHandler struct {
	startTime time.Time
	sourceDir string
	tempDir   string
}

// NewHealthHandler creates a health handler reporting disk usage for the
// given directories.
func NewHealthHandler(sourceDir, tempDir string) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		sourceDir: sourceDir,
		tempDir:   tempDir,
	}
}

// Register registers the health and version routes.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health and system info",
		Tags:        []string{"System"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "getVersion",
		Method:      "GET",
		Path:        "/api/v1/version",
		Summary:     "Build version",
		Tags:        []string{"System"},
	}, h.Version)
}

// DiskUsage reports usage of one filesystem.
type DiskUsage struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// HealthInput is the input for the health endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health endpoint.
type HealthOutput struct {
	Body struct {
		Status        string      `json:"status"`
		UptimeSeconds int64       `json:"uptime_seconds"`
		GoVersion     string      `json:"go_version"`
		NumGoroutine  int         `json:"num_goroutine"`
		MemoryUsedPct float64     `json:"memory_used_percent,omitempty"`
		Load1         float64     `json:"load1,omitempty"`
		Disks         []DiskUsage `json:"disks,omitempty"`
	}
}

// Get reports process and host health. Host metrics are best effort.
func (h *HealthHandler) Get(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	resp := &HealthOutput{}
	resp.Body.Status = "ok"
	resp.Body.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	resp.Body.GoVersion = runtime.Version()
	resp.Body.NumGoroutine = runtime.NumGoroutine()

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.Body.MemoryUsedPct = vm.UsedPercent
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		resp.Body.Load1 = avg.Load1
	}
	for _, dir := range []string{h.sourceDir, h.tempDir} {
		if usage, err := disk.UsageWithContext(ctx, dir); err == nil {
			resp.Body.Disks = append(resp.Body.Disks, DiskUsage{
				Path:        dir,
				TotalBytes:  usage.Total,
				FreeBytes:   usage.Free,
				UsedPercent: usage.UsedPercent,
			})
		}
	}
	return resp, nil
}

// VersionInput is the input for the version endpoint.
type VersionInput struct{}

// VersionOutput is the output for the version endpoint.
type VersionOutput struct {
	Body version.Info
}

// Version returns build information.
func (h *HealthHandler) Version(_ context.Context, _ *VersionInput) (*VersionOutput, error) {
	return &VersionOutput{Body: version.GetInfo()}, nil
}
