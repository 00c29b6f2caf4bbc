package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeNavigationTimeout = "NAVIGATION_TIMEOUT"
	ErrCodeNetwork           = "NETWORK_FAILURE"
	ErrCodeSessionAcquire    = "SESSION_ACQUISITION_FAILED"
	ErrCodeExtraction        = "EXTRACTION_FAULT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ErrInvalidQuery is returned when a search term is empty or whitespace-only.
// It is the only condition that rejects a scrape before any browser work.
var ErrInvalidQuery = NewScrapeError(ErrCodeInvalidInput, "search query must not be empty", nil)

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ScrapeError with the same code, so that
// errors.Is(err, ErrInvalidQuery) matches any invalid-input error.
func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// CodeOf returns the ScrapeError code carried anywhere in err's chain,
// or ErrCodeInternal when none is present.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}
