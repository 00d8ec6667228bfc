package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/aggregates"
)

var (
	errInvalidWrite = errors.New("invalid gradebook write")
	errStaleEntry   = errors.New("stale gradebook entry")
)

// ValidationError tags msg so classify reports CodeValidation.
func ValidationError(msg string) error {
	return errors.Join(errInvalidWrite, errors.New(strings.TrimSpace(msg)))
}

// ConflictError tags msg so classify reports CodeConflict.
func ConflictError(msg string) error {
	return errors.Join(errStaleEntry, errors.New(strings.TrimSpace(msg)))
}

// classify wraps err into the *WriteError returned for op. Driver errors are
// read by SQLSTATE on Postgres and by message on SQLite.
func classify(op domainagg.Op, err error) error {
	if err == nil {
		return nil
	}
	var we *domainagg.WriteError
	if errors.As(err, &we) {
		return err
	}
	return &domainagg.WriteError{Code: codeFor(err), Op: op, Cause: err}
}

func codeFor(err error) domainagg.ErrorCode {
	switch {
	case errors.Is(err, errInvalidWrite):
		return domainagg.CodeValidation
	case errors.Is(err, errStaleEntry):
		return domainagg.CodeConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.CodeRetryable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation: a concurrent create won
			return domainagg.CodeConflict
		case "23503": // foreign_key_violation: the learner does not exist
			return domainagg.CodeValidation
		case "40001", "40P01", "55P03":
			return domainagg.CodeRetryable
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint failed"),
		strings.Contains(msg, "duplicate key"):
		return domainagg.CodeConflict
	case strings.Contains(msg, "foreign key constraint failed"):
		return domainagg.CodeValidation
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "timeout"):
		return domainagg.CodeRetryable
	}
	return domainagg.CodeInternal
}
