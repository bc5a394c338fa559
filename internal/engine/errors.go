package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure detected while running the worker pool.
//
// Runtime errors include:
//   - Setup failure: the script engine could not be created (terminal)
//   - Worker failure: a worker could not be run to completion or joined (terminal)
//   - Script error: the script raised inside the engine (logged, non-fatal)
//   - Checksum mismatch: the final checksum differs from the closed form
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, if one was started.
	RunID string

	// Worker is the 1-based worker number, or 0 when not worker-specific.
	Worker int

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeSetupFailed      RuntimeErrorCode = "SETUP_FAILED"
	ErrCodeWorkerFailed     RuntimeErrorCode = "WORKER_FAILED"
	ErrCodeScriptError      RuntimeErrorCode = "SCRIPT_ERROR"
	ErrCodeChecksumMismatch RuntimeErrorCode = "CHECKSUM_MISMATCH"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RunID != "" && e.Worker > 0 {
		msg = fmt.Sprintf("%s (run=%s, worker=%d)", msg, e.RunID, e.Worker)
	} else if e.RunID != "" {
		msg = fmt.Sprintf("%s (run=%s)", msg, e.RunID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsSetupError returns true if the error is a setup failure.
func IsSetupError(err error) bool { return hasCode(err, ErrCodeSetupFailed) }

// IsWorkerError returns true if the error is a worker spawn/join failure.
func IsWorkerError(err error) bool { return hasCode(err, ErrCodeWorkerFailed) }

// IsChecksumError returns true if the error is a checksum mismatch.
func IsChecksumError(err error) bool { return hasCode(err, ErrCodeChecksumMismatch) }

// NewSetupError creates a RuntimeError for a script engine setup failure.
func NewSetupError(err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSetupFailed,
		Message: "error on script engine setup",
		Err:     err,
	}
}

// NewWorkerError creates a RuntimeError for a worker that did not complete.
func NewWorkerError(runID string, worker int, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeWorkerFailed,
		Message: "worker did not complete",
		RunID:   runID,
		Worker:  worker,
		Err:     err,
	}
}

// NewScriptError creates a RuntimeError for a script that raised inside the engine.
func NewScriptError(runID string, worker int, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeScriptError,
		Message: "script raised exception",
		RunID:   runID,
		Worker:  worker,
		Err:     err,
	}
}

// NewChecksumError creates a RuntimeError for a final checksum mismatch.
func NewChecksumError(runID string, got, want int64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeChecksumMismatch,
		Message: fmt.Sprintf("checksum %d != expected %d", got, want),
		RunID:   runID,
	}
}
