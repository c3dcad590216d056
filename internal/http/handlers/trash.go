package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/diettube/diettube/internal/archive"
)

// TrashHandler exposes the trash directory holding processed originals.
type TrashHandler struct {
	trash *archive.Trash
}

// NewTrashHandler creates a trash handler.
func NewTrashHandler(trash *archive.Trash) *TrashHandler {
	return &TrashHandler{trash: trash}
}

// Register registers the trash routes.
func (h *TrashHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listTrash",
		Method:      "GET",
		Path:        "/api/v1/trash",
		Summary:     "List trashed originals",
		Tags:        []string{"Trash"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getTrashInfo",
		Method:      "GET",
		Path:        "/api/v1/trash/info",
		Summary:     "Get trash summary",
		Tags:        []string{"Trash"},
	}, h.Info)

	huma.Register(api, huma.Operation{
		OperationID: "emptyTrash",
		Method:      "POST",
		Path:        "/api/v1/trash/empty",
		Summary:     "Empty the trash",
		Description: "Deletes all trashed originals; completed tasks whose originals lived here can no longer be rolled back",
		Tags:        []string{"Trash"},
	}, h.Empty)
}

// ListTrashInput is the input for listing the trash.
type ListTrashInput struct{}

// ListTrashOutput is the output for listing the trash.
type ListTrashOutput struct {
	Body struct {
		Files []archive.TrashEntry `json:"files"`
	}
}

// List returns every trashed file.
func (h *TrashHandler) List(_ context.Context, _ *ListTrashInput) (*ListTrashOutput, error) {
	entries, err := h.trash.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list trash", err)
	}
	resp := &ListTrashOutput{}
	resp.Body.Files = entries
	if resp.Body.Files == nil {
		resp.Body.Files = []archive.TrashEntry{}
	}
	return resp, nil
}

// TrashInfoInput is the input for the trash summary.
type TrashInfoInput struct{}

// TrashInfoOutput is the output for the trash summary.
type TrashInfoOutput struct {
	Body archive.TrashInfo
}

// Info returns the trash file count and total size.
func (h *TrashHandler) Info(_ context.Context, _ *TrashInfoInput) (*TrashInfoOutput, error) {
	info, err := h.trash.Info()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read trash", err)
	}
	return &TrashInfoOutput{Body: *info}, nil
}

// EmptyTrashInput is the input for emptying the trash.
type EmptyTrashInput struct{}

// EmptyTrashOutput is the output for emptying the trash.
type EmptyTrashOutput struct {
	Body struct {
		Emptied bool `json:"emptied"`
	}
}

// Empty deletes all trashed originals.
func (h *TrashHandler) Empty(_ context.Context, _ *EmptyTrashInput) (*EmptyTrashOutput, error) {
	if err := h.trash.Empty(); err != nil {
		return nil, huma.Error500InternalServerError("failed to empty trash", err)
	}
	resp := &EmptyTrashOutput{}
	resp.Body.Emptied = true
	return resp, nil
}
