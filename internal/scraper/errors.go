package scraper

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind tags the closed set of failure variants raised by the pipeline.
type ErrorKind string

// Failure variants. Configuration and validation failures are deterministic
// and never retried; the rest are treated as transient.
const (
	KindConfiguration ErrorKind = "CONFIGURATION_ERROR"
	KindPreprocessing ErrorKind = "PREPROCESSING_ERROR"
	KindScrape        ErrorKind = "SCRAPE_ERROR"
	KindValidation    ErrorKind = "VALIDATION_ERROR"
	KindPageCrash     ErrorKind = "PAGE_CRASH"
)

// Error is the tagged error carried through the extraction pipeline. Section
// and Fields are populated only for validation failures.
type Error struct {
	Kind      ErrorKind
	Message   string
	URL       string
	Section   string
	Fields    []string
	Timestamp time.Time
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a tagged Error wrapping an optional cause.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Err:       cause,
	}
}

// NewValidationError reports the first section whose mandatory fields are
// missing. The whole record is rejected; partial records are never produced.
func NewValidationError(section string, fields []string) *Error {
	return &Error{
		Kind:      KindValidation,
		Message:   fmt.Sprintf("missing required fields in %s", section),
		Section:   section,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// KindOf extracts the ErrorKind from err, or KindScrape for untagged errors.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindScrape
}

// IsRetryable reports whether the failure may succeed on a later attempt.
// Unknown errors (timeouts, crashes, transport faults) default to retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindConfiguration, KindValidation:
		return false
	default:
		return true
	}
}
