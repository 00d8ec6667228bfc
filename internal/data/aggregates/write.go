package aggregates

import (
	"context"
	"time"

	domainagg "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/aggregates"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/dbctx"
	"gorm.io/gorm"
)

// WriteMetrics records gradebook write outcomes. *observability.Metrics
// satisfies it.
type WriteMetrics interface {
	ObserveAggregateOperation(operation, status string, dur time.Duration)
	IncAggregateConflict(operation string)
	IncAggregateRetry(operation string)
}

// inTx runs fn in one transaction, classifies its failure and records the
// outcome under op.
func (a *gradebookAggregate) inTx(ctx context.Context, op domainagg.Op, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	var err error
	if a.db == nil {
		err = &domainagg.WriteError{Code: domainagg.CodeInternal, Op: op, Cause: gorm.ErrInvalidDB}
	} else {
		err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.Context{Ctx: ctx, Tx: tx})
		})
	}
	err = classify(op, err)
	a.observe(op, err, time.Since(start))
	return err
}

func (a *gradebookAggregate) observe(op domainagg.Op, err error, dur time.Duration) {
	code := domainagg.CodeOf(err)
	if code == domainagg.CodeInternal {
		a.log.Warn("gradebook write failed", "op", op, "error", err)
	}
	if a.metrics == nil {
		return
	}
	a.metrics.ObserveAggregateOperation(string(op), writeStatus(err), dur)
	switch code {
	case domainagg.CodeConflict:
		a.metrics.IncAggregateConflict(string(op))
	case domainagg.CodeRetryable:
		a.metrics.IncAggregateRetry(string(op))
	}
}

func writeStatus(err error) string {
	if err == nil {
		return "success"
	}
	if code := domainagg.CodeOf(err); code != "" {
		return string(code)
	}
	return string(domainagg.CodeInternal)
}
