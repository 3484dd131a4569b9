package entity

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidSearchMode    = errors.New("invalid search mode")
	ErrInvalidOutputFormat  = errors.New("invalid output format")
	ErrDatasetNotFound      = errors.New("dataset not found or improperly formatted")
	ErrDatasetStagingFailed = errors.New("dataset staging failed")
	ErrSubmissionFailed     = errors.New("submission failed")
	ErrResultRead           = errors.New("result read failed")
)

// SubmissionError carries the batch scheduler's diagnostic output.
type SubmissionError struct {
	Scheduler  string
	Diagnostic string
	Err        error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrSubmissionFailed, e.Scheduler)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Diagnostic != "" && (e.Err == nil || e.Diagnostic != e.Err.Error()) {
		msg += ": " + e.Diagnostic
	}
	return msg
}

func (e *SubmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubmissionFailed}
	}
	return []error{ErrSubmissionFailed, e.Err}
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidSearchMode) ||
		errors.Is(err, ErrInvalidOutputFormat) ||
		errors.Is(err, ErrDatasetNotFound)
}
