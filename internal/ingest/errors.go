package ingest

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	// ErrCodeMalformedFact marks a fetched record that cannot be mapped.
	// Recovered per record: the record is skipped and counted.
	ErrCodeMalformedFact ErrorCode = "MALFORMED_FACT"

	// ErrCodeStorageUnavailable marks a failed storage call. Fatal to the
	// run; the whole batch is safe to retry.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeIntegrityViolation marks a broken reconciliation invariant or a
	// uniqueness conflict at the store. Fatal to the run.
	ErrCodeIntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"
)

// PipelineError is an error raised by one stage of an ingestion run.
type PipelineError struct {
	Code    ErrorCode
	Stage   Stage
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s (stage=%s)", msg, e.Stage)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsMalformedFact reports whether err rejects a single fetched record.
func IsMalformedFact(err error) bool { return hasCode(err, ErrCodeMalformedFact) }

// IsStorageUnavailable reports whether err is a failed storage call.
func IsStorageUnavailable(err error) bool { return hasCode(err, ErrCodeStorageUnavailable) }

// IsIntegrityViolation reports whether err is a broken invariant.
func IsIntegrityViolation(err error) bool { return hasCode(err, ErrCodeIntegrityViolation) }

func newMalformedFact(format string, args ...any) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeMalformedFact,
		Stage:   StageMapped,
		Message: fmt.Sprintf(format, args...),
	}
}

func newIntegrityViolation(stage Stage, format string, args ...any) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeIntegrityViolation,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	}
}
