package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/cbind/internal/mapping"
	"github.com/roach88/cbind/internal/resolver"
)

// Code categorizes session errors.
type Code string

const (
	// CodeConfig is a missing or invalid configuration or mapping
	// definition.
	CodeConfig Code = "CONFIG"

	// CodeResolution is a reference the resolver could not map under the
	// throw policy.
	CodeResolution Code = "RESOLUTION"

	// CodeMismatch is a mapping callback handed an element of the wrong
	// variant.
	CodeMismatch Code = "MAPPING_MISMATCH"

	// CodeConflict is contradictory edits within one mapping invocation.
	CodeConflict Code = "EDIT_CONFLICT"

	// CodeTransport is a lost connection to the driver.
	CodeTransport Code = "TRANSPORT"

	// CodeInvalidTransition is an operation the session state forbids.
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// CodeQuotaExceeded is a mapping pass that ran out of steps.
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"

	// CodeInternal is anything else: I/O, parse and storage failures.
	CodeInternal Code = "INTERNAL"
)

// Error is a failed session operation.
type Error struct {
	Code Code

	// Op is the operation that failed, e.g. "index".
	Op string

	// Session is the handle of the affected session.
	Session string

	Err error
}

func (e *Error) Error() string {
	if e.Session != "" {
		return fmt.Sprintf("%s: %s (session=%s): %v", e.Code, e.Op, e.Session, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the error ended its session. Invalid transitions
// and rejected mapping definitions leave the session usable.
func (e *Error) Fatal() bool {
	switch e.Code {
	case CodeInvalidTransition, CodeConfig:
		return false
	}
	return true
}

// codeOf classifies err.
func codeOf(err error) Code {
	switch {
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrSessionClosed):
		return CodeInvalidTransition
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrInvalidFilter), mapping.IsConfigError(err):
		return CodeConfig
	case resolver.IsUnresolvedError(err):
		return CodeResolution
	case mapping.IsMismatchError(err):
		return CodeMismatch
	case mapping.IsConflictError(err):
		return CodeConflict
	case mapping.IsStepsExceededError(err):
		return CodeQuotaExceeded
	case errors.Is(err, ErrTransportClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeTransport
	}
	return CodeInternal
}

func codeIs(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool { return codeIs(err, CodeConfig) }

// IsResolutionError reports whether err is a resolution error.
func IsResolutionError(err error) bool { return codeIs(err, CodeResolution) }

// IsMismatchError reports whether err is a mapping type mismatch.
func IsMismatchError(err error) bool { return codeIs(err, CodeMismatch) }

// IsConflictError reports whether err is an edit conflict.
func IsConflictError(err error) bool { return codeIs(err, CodeConflict) }

// IsTransportError reports whether err is a transport failure.
func IsTransportError(err error) bool { return codeIs(err, CodeTransport) }

// IsTransitionError reports whether err is an invalid transition.
func IsTransitionError(err error) bool { return codeIs(err, CodeInvalidTransition) }

// IsQuotaError reports whether err is an exhausted step quota.
func IsQuotaError(err error) bool { return codeIs(err, CodeQuotaExceeded) }
