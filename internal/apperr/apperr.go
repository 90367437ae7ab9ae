// Package apperr defines the typed error taxonomy shared across taskgraph's
// subsystems so callers can switch on a stable code instead of matching
// error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. Values are stable and safe to log.
type Code string

const (
	// Input errors.
	CodeMalformedJSON    Code = "malformed_json"
	CodeEncodingError    Code = "encoding_error"
	CodeInvalidTaskID    Code = "invalid_task_id"
	CodeValidationFailed Code = "validation_failed"

	// State errors.
	CodeNotFound                Code = "not_found"
	CodeTaskNotFound             Code = "task_not_found"
	CodeMessageNotFound          Code = "message_not_found"
	CodeCommitEntryNotFound      Code = "commit_entry_not_found"
	CodeNotPending               Code = "not_pending"
	CodeAlreadyRead              Code = "already_read"
	CodeNotSender                Code = "not_sender"
	CodeDecisionAlreadyProcessed Code = "decision_already_processed"
	CodeConfirmationRequired     Code = "confirmation_required"

	// Consistency errors (informational, severity-tagged by the caller).
	CodeHashMismatch        Code = "hash_mismatch"
	CodeSequenceGap         Code = "sequence_gap"
	CodeBucketStatusMismatch Code = "bucket_status_mismatch"

	// Concurrency errors.
	CodeLockAcquisitionFailed Code = "lock_acquisition_failed"

	// Reconstruction errors.
	CodeAmbiguousParent Code = "ambiguous_parent"
	CodeCycleDetected   Code = "cycle_detected"

	// Lifecycle.
	CodeUninitialized    Code = "uninitialized"
	CodeNotImplemented   Code = "not_implemented"
	CodePermissionDenied Code = "permission_denied"
)

// Error is the structured, machine-readable failure type returned by every
// public taskgraph operation that can fail.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given Code, looking through wrapping.
func Is(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// CodeOf extracts the Code from err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
