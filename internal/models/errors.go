package models

import "errors"

// Common validation errors for models.
var (
	// ErrSourcePathRequired indicates a required source path field is empty.
	ErrSourcePathRequired = errors.New("source_path is required")

	// ErrRelativePathRequired indicates a required relative path field is empty.
	ErrRelativePathRequired = errors.New("relative_path is required")

	// ErrInvalidTaskStatus indicates an unknown task status value.
	ErrInvalidTaskStatus = errors.New("invalid task status")
)
