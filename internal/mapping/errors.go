package mapping

import (
	"errors"
	"fmt"

	"github.com/roach88/cbind/internal/ir"
)

// ConfigError reports a mapper that cannot run: a nil mapper, filter or
// callback.
type ConfigError struct {
	Mapper  string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Mapper == "" {
		return "invalid mapper: " + e.Message
	}
	return fmt.Sprintf("invalid mapper %s: %s", e.Mapper, e.Message)
}

// MismatchError reports a matched element whose variant is not the one a
// typed mapper expects. It means the mapper's filter is wrong and is always
// fatal.
type MismatchError struct {
	Mapper  string
	Element string
	Want    ir.Kind
	Got     ir.Kind
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("mapper %s: %s is not the expected type (want %s, got %s)",
		e.Mapper, e.Element, e.Want, e.Got)
}

// ConflictError reports contradictory decisions about one element within a
// single invocation. Only engines built WithStrictEdits return it.
type ConflictError struct {
	Mapper  string
	Element string
	First   Intent
	Second  Intent
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("mapper %s on %s: %s contradicts %s", e.Mapper, e.Element, e.Second, e.First)
}

// InvocationError wraps a failure of one mapper invocation: the callback's
// own error, misuse recorded by the scope, or an intent the tree rejected.
type InvocationError struct {
	Mapper  string
	Element string
	Stage   string // "callback", "edit" or "apply"
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("mapper %s on %s (%s): %v", e.Mapper, e.Element, e.Stage, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsMismatchError reports whether err is a MismatchError.
func IsMismatchError(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// IsConflictError reports whether err is a ConflictError.
func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
