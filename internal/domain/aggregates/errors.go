package aggregates

import (
	"errors"
	"fmt"
)

// Op names a gradebook write. It labels write metrics and prefixes errors.
type Op string

const (
	OpApplyGrade   Op = "apply_grade"
	OpPurgeEntries Op = "purge_course.entries"
	OpPurgeHistory Op = "purge_course.history"
)

type ErrorCode string

const (
	// CodeValidation marks input that no retry can make valid.
	CodeValidation ErrorCode = "validation"
	// CodeConflict marks a lost compare-and-swap or a duplicate create.
	CodeConflict  ErrorCode = "conflict"
	CodeRetryable ErrorCode = "retryable"
	CodeInternal  ErrorCode = "internal"
)

// WriteError is what every failed GradebookAggregate write returns.
type WriteError struct {
	Code  ErrorCode
	Op    Op
	Cause error
}

func (e *WriteError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("gradebook %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("gradebook %s: %s: %v", e.Op, e.Code, e.Cause)
}

func (e *WriteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// CodeOf returns the write error code carried by err, or "" when err is not
// a gradebook write failure.
func CodeOf(err error) ErrorCode {
	var we *WriteError
	if errors.As(err, &we) && we != nil {
		return we.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
