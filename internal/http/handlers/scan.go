package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/diettube/diettube/internal/scanner"
)

// ScanHandler triggers scans and reports scan progress.
type ScanHandler struct {
	scanner *scanner.Scanner
}

// NewScanHandler creates a scan handler.
func NewScanHandler(s *scanner.Scanner) *ScanHandler {
	return &ScanHandler{scanner: s}
}

// Register registers the scan routes.
func (h *ScanHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "triggerScan",
		Method:      "POST",
		Path:        "/api/v1/scan",
		Summary:     "Trigger a library scan",
		Description: "Starts a scan in the background; fails when one is already running",
		Tags:        []string{"Scan"},
	}, h.Trigger)

	huma.Register(api, huma.Operation{
		OperationID: "getScanStatus",
		Method:      "GET",
		Path:        "/api/v1/scan/status",
		Summary:     "Get scan progress",
		Tags:        []string{"Scan"},
	}, h.Status)

	huma.Register(api, huma.Operation{
		OperationID: "previewIgnorePatterns",
		Method:      "POST",
		Path:        "/api/v1/scan/ignore-preview",
		Summary:     "Preview ignore patterns",
		Description: "Reports which of the given relative paths the candidate patterns would ignore",
		Tags:        []string{"Scan"},
	}, h.IgnorePreview)
}

// TriggerScanInput is the input for triggering a scan.
type TriggerScanInput struct{}

// TriggerScanOutput is the output for triggering a scan.
type TriggerScanOutput struct {
	Body struct {
		Started bool `json:"started"`
	}
}

// Trigger starts a background scan.
func (h *ScanHandler) Trigger(_ context.Context, _ *TriggerScanInput) (*TriggerScanOutput, error) {
	// the scan must outlive this request
	if err := h.scanner.ScanAsync(context.Background()); err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			return nil, huma.Error409Conflict("a scan is already running")
		}
		return nil, huma.Error500InternalServerError("failed to start scan", err)
	}
	resp := &TriggerScanOutput{}
	resp.Body.Started = true
	return resp, nil
}

// ScanStatusInput is the input for the scan status endpoint.
type ScanStatusInput struct{}

// ScanStatusOutput is the output for the scan status endpoint.
type ScanStatusOutput struct {
	Body scanner.Progress
}

// Status returns the progress of the current or last scan.
func (h *ScanHandler) Status(_ context.Context, _ *ScanStatusInput) (*ScanStatusOutput, error) {
	return &ScanStatusOutput{Body: h.scanner.Progress()}, nil
}

// IgnorePreviewInput is the input for previewing ignore patterns.
type IgnorePreviewInput struct {
	Body struct {
		Patterns []string `json:"patterns" doc:"Candidate ignore patterns"`
		Paths    []string `json:"paths" doc:"Library-relative paths to test"`
	}
}

// IgnorePreviewOutput is the output for previewing ignore patterns.
type IgnorePreviewOutput struct {
	Body struct {
		Ignored []string `json:"ignored"`
		Kept    []string `json:"kept"`
	}
}

// IgnorePreview splits the given paths by whether the candidate patterns
// would ignore them. Nothing is persisted.
func (h *ScanHandler) IgnorePreview(_ context.Context, input *IgnorePreviewInput) (*IgnorePreviewOutput, error) {
	resp := &IgnorePreviewOutput{}
	resp.Body.Ignored = []string{}
	resp.Body.Kept = []string{}
	for _, p := range input.Body.Paths {
		if scanner.Ignored(p, input.Body.Patterns) {
			resp.Body.Ignored = append(resp.Body.Ignored, p)
		} else {
			resp.Body.Kept = append(resp.Body.Kept, p)
		}
	}
	return resp, nil
}
