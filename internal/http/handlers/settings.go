package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/diettube/diettube/internal/ffmpeg"
	"github.com/diettube/diettube/internal/settings"
)

// SettingsHandler reads and updates runtime settings.
type SettingsHandler struct {
	manager *settings.Manager
	marker  string
}

// NewSettingsHandler creates a settings handler. marker is used by the
// command preview.
func NewSettingsHandler(manager *settings.Manager, marker string) *SettingsHandler {
	return &SettingsHandler{manager: manager, marker: marker}
}

// Register registers the settings routes.
func (h *SettingsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSettings",
		Method:      "GET",
		Path:        "/api/v1/settings",
		Summary:     "Get runtime settings",
		Tags:        []string{"Settings"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "updateSettings",
		Method:      "PUT",
		Path:        "/api/v1/settings",
		Summary:     "Update runtime settings",
		Description: "Validates and persists the full settings document; tasks already running keep their snapshot",
		Tags:        []string{"Settings"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "previewEncoderCommand",
		Method:      "POST",
		Path:        "/api/v1/settings/preview",
		Summary:     "Preview the encoder command",
		Description: "Returns the encoder arguments the given settings would produce for a sample source",
		Tags:        []string{"Settings"},
	}, h.Preview)
}

// SettingsBody is the API representation of runtime settings with version.
type SettingsBody struct {
	settings.RuntimeSettings
	Version int64 `json:"version" readOnly:"true"`
}

// GetSettingsInput is the input for reading settings.
type GetSettingsInput struct{}

// SettingsOutput carries the settings document.
type SettingsOutput struct {
	Body SettingsBody
}

// Get returns the current settings snapshot.
func (h *SettingsHandler) Get(_ context.Context, _ *GetSettingsInput) (*SettingsOutput, error) {
	snap := h.manager.Current()
	return &SettingsOutput{Body: SettingsBody{RuntimeSettings: snap.RuntimeSettings, Version: snap.Version}}, nil
}

// UpdateSettingsInput is the input for updating settings.
type UpdateSettingsInput struct {
	Body settings.RuntimeSettings
}

// Update validates and persists new settings.
func (h *SettingsHandler) Update(ctx context.Context, input *UpdateSettingsInput) (*SettingsOutput, error) {
	snap, err := h.manager.Update(ctx, input.Body)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	return &SettingsOutput{Body: SettingsBody{RuntimeSettings: snap.RuntimeSettings, Version: snap.Version}}, nil
}

// PreviewInput describes the sample source for the preview.
type PreviewInput struct {
	Body struct {
		Settings *settings.RuntimeSettings `json:"settings,omitempty" doc:"Settings to preview; current settings when omitted"`
		Width    int                       `json:"width,omitempty" doc:"Sample source width, default 3840"`
		Height   int                       `json:"height,omitempty" doc:"Sample source height, default 2160"`
		FPS      float64                   `json:"fps,omitempty" doc:"Sample source frame rate, default 60"`
	}
}

// PreviewOutput carries the generated argument list.
type PreviewOutput struct {
	Body struct {
		Args []string `json:"args"`
	}
}

// Preview builds the encoder arguments without running anything.
func (h *SettingsHandler) Preview(_ context.Context, input *PreviewInput) (*PreviewOutput, error) {
	snap := h.manager.Current()
	if input.Body.Settings != nil {
		if err := input.Body.Settings.Validate(); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		snap = settings.Snapshot{RuntimeSettings: input.Body.Settings.Clone()}
	}

	info := ffmpeg.MediaInfo{
		Width:     input.Body.Width,
		Height:    input.Body.Height,
		FrameRate: input.Body.FPS,
		Duration:  3600,
	}
	if info.Width == 0 {
		info.Width = 3840
	}
	if info.Height == 0 {
		info.Height = 2160
	}
	if info.FrameRate == 0 {
		info.FrameRate = 60
	}

	args, err := ffmpeg.BuildTranscodeArgs("INPUT", "OUTPUT", info, snap, h.marker)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	resp := &PreviewOutput{}
	resp.Body.Args = args
	return resp, nil
}
