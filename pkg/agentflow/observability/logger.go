// Package observability provides production-grade observability features
// for the checkpointing service: structured logging, metrics, and
// distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds checkpointing context to a logger.
// Returns a new logger with thread_id and user_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "th-123", "u-1")
//	enriched.Info("state stored") // includes thread_id, user_id
func EnrichLogger(logger *slog.Logger, threadID, userID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("thread_id", threadID),
		slog.String("user_id", userID),
	)
}

// LogOperation logs a completed checkpoint operation.
func LogOperation(logger *slog.Logger, op, threadID string, duration time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint operation completed",
		slog.String("op", op),
		slog.String("thread_id", threadID),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
	)
}

// LogOperationError logs a failed checkpoint operation.
func LogOperationError(logger *slog.Logger, op, threadID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("checkpoint operation failed",
		slog.String("op", op),
		slog.String("thread_id", threadID),
		slog.String("error", err.Error()),
	)
}

// LogStateMerged logs a merge-on-write reconciliation.
func LogStateMerged(logger *slog.Logger, threadID string, contextLen int) {
	if logger == nil {
		return
	}
	logger.Debug("state merged",
		slog.String("thread_id", threadID),
		slog.Int("context_messages", contextLen),
	)
}

// LogRepair logs the outcome of a thread repair.
func LogRepair(logger *slog.Logger, threadID string, removed int) {
	if logger == nil {
		return
	}
	if removed == 0 {
		logger.Debug("thread repair found nothing to remove",
			slog.String("thread_id", threadID),
		)
		return
	}
	logger.Info("thread repaired",
		slog.String("thread_id", threadID),
		slog.Int("removed_messages", removed),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
