package lumen

import (
	"context"
	"fmt"
	"time"
)

// Timer measures an operation and emits exactly one record when the
// returned func runs, on every exit path:
//
//	func query(ctx context.Context) (err error) {
//		done := log.Timer(ctx, "database_query")
//		defer done(&err)
//		...
//	}
//
// A clean exit emits INFO "operation completed" with duration_ms. When
// *errp is non-nil the record is ERROR "operation failed" carrying the
// error's exception fields. A panic is recorded the same way and then
// re-raised unchanged; timing never swallows a failure. Pass nil when the
// wrapped operation cannot fail.
func (l *Logger) Timer(ctx context.Context, operation string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		elapsed := float64(time.Since(start).Nanoseconds()) / 1e6

		if r := recover(); r != nil {
			l.log(ctx, LevelError, "operation failed", panicError{r}, []any{
				"operation", operation,
				"duration_ms", elapsed,
			})
			panic(r)
		}

		if errp != nil && *errp != nil {
			l.log(ctx, LevelError, "operation failed", *errp, []any{
				"operation", operation,
				"duration_ms", elapsed,
			})
			return
		}

		l.log(ctx, LevelInfo, "operation completed", nil, []any{
			"operation", operation,
			"duration_ms", elapsed,
		})
	}
}

// panicError wraps a recovered panic value so it flows through the
// exception capture path like any other error.
type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}
