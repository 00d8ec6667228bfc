package runtime

import (
	"errors"
	"fmt"
)

// ErrPermanent marks task failures that retrying cannot fix, such as
// malformed arguments. Every queue backend fails these without retry.
var ErrPermanent = errors.New("permanent task failure")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{ErrPermanent, e.err} }

// Permanent tags err as non-retryable.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return &permanentError{err: err}
}

// Permanentf is Permanent(fmt.Errorf(format, args...)).
func Permanentf(format string, args ...any) error {
	return Permanent(fmt.Errorf(format, args...))
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

type MissingHandlerError struct{ TaskType string }

func (e *MissingHandlerError) Error() string {
	return "no handler registered for task_type=" + e.TaskType
}

// PanicError carries a recovered handler panic.
type PanicError struct{ Val any }

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
