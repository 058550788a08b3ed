package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoFiles signals a request without any uploaded file.
	ErrNoFiles = errors.New("no file tree uploaded")
	// ErrInvalidPath signals an upload path that resolves outside the workspace.
	ErrInvalidPath = errors.New("disallowed file path")
	// ErrNoMarkdown signals an upload without any .md/.markdown file.
	ErrNoMarkdown = errors.New("no Markdown file found in the uploaded directory")
	// ErrInvalidMetadata signals a metadata override that is not key=value.
	ErrInvalidMetadata = errors.New("invalid metadata")
	// ErrMissingOutput signals that the converter exited 0 without writing
	// the output file.
	ErrMissingOutput = errors.New("converter reported success but produced no output")
	// ErrBusy signals that no conversion slot became free in time.
	ErrBusy = errors.New("all conversion slots are busy")

	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrMissingAPIKey signals a keyless request while keys are required.
	ErrMissingAPIKey = errors.New("missing api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)

// EntryNotFoundError reports a declared entry file that is not in the upload.
type EntryNotFoundError struct {
	Path string
}

func (e *EntryNotFoundError) Error() string {
	return "Markdown entry file not found: " + e.Path
}

// ConversionError carries the converter's (truncated) diagnostic output.
type ConversionError struct {
	ExitCode int
	Log      string
}

func (e *ConversionError) Error() string {
	return "Pandoc/LaTeX error:\n" + e.Log
}

// TimeoutError reports a conversion killed after exceeding Limit.
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("conversion exceeded the %s limit", e.Limit)
}

// IsClientError reports whether err was caused by the request content.
func IsClientError(err error) bool {
	var notFound *EntryNotFoundError
	switch {
	case errors.Is(err, ErrNoFiles),
		errors.Is(err, ErrInvalidPath),
		errors.Is(err, ErrNoMarkdown),
		errors.Is(err, ErrInvalidMetadata),
		errors.As(err, &notFound):
		return true
	}
	return false
}
