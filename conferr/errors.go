// Package conferr defines the failure taxonomy for json-conform.
//
// Every case failure reported by the harness maps to exactly one
// FailureClass, so reports can state why a case failed and not only that it
// did.
package conferr

import (
	"errors"
	"fmt"
)

// FailureClass is a stable failure category.
type FailureClass string

const (
	BinaryNotFound       FailureClass = "BINARY_NOT_FOUND"
	FixtureUnreadable    FailureClass = "FIXTURE_UNREADABLE"
	ToolInvocationFailed FailureClass = "TOOL_INVOCATION_FAILED"
	ToolTimedOut         FailureClass = "TOOL_TIMED_OUT"
	ToolCrashed          FailureClass = "TOOL_CRASHED"
	ComparisonMismatch   FailureClass = "COMPARISON_MISMATCH"
	OutputMissing        FailureClass = "OUTPUT_MISSING"
	OutputInvalid        FailureClass = "OUTPUT_INVALID"
	NotDeterministic     FailureClass = "NOT_DETERMINISTIC"
	ModeUnsupported      FailureClass = "MODE_UNSUPPORTED"
	Canceled             FailureClass = "CANCELED"
	ConfigInvalid        FailureClass = "CONFIG_INVALID"
	InternalIO           FailureClass = "INTERNAL_IO"
)

// IsCaseFailure reports whether the class counts against the suite. Skips
// (unsupported modes) do not.
func (fc FailureClass) IsCaseFailure() bool {
	return fc != ModeUnsupported
}

// Error is the structured error type for all json-conform failures.
type Error struct {
	Class   FailureClass
	Path    string // file path or JSON node path; empty if not applicable
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Path != "" {
		return fmt.Sprintf("conferr: %s at %s: %s", e.Class, e.Path, msg)
	}
	return fmt.Sprintf("conferr: %s: %s", e.Class, msg)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given class and message.
func New(class FailureClass, path string, message string) *Error {
	return &Error{Class: class, Path: path, Message: message}
}

// Newf is New with a format string.
func Newf(class FailureClass, path string, format string, args ...any) *Error {
	return &Error{Class: class, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(class FailureClass, path string, message string, cause error) *Error {
	return &Error{Class: class, Path: path, Message: message, Cause: cause}
}

// ClassOf returns the class of the first *Error in err's chain, or
// InternalIO when err carries no classification.
func ClassOf(err error) FailureClass {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	return InternalIO
}
