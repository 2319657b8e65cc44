package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records checkpointing metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordOperation records one checkpoint service operation with its
	// duration and error status.
	RecordOperation(ctx context.Context, op string, duration time.Duration, err error)

	// RecordStateWrite records a persisted state's context size.
	RecordStateWrite(ctx context.Context, contextMessages int)

	// RecordRepair records a thread repair and how many corrupt messages
	// were removed.
	RecordRepair(ctx context.Context, removed int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	operations      metric.Int64Counter
	opLatency       metric.Float64Histogram
	opErrors        metric.Int64Counter
	contextSize     metric.Int64Histogram
	repairedRemoved metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("agentflow")

	operations, err := meter.Int64Counter("agentflow.checkpoint.operations",
		metric.WithDescription("Number of checkpoint service operations"),
	)
	if err != nil {
		return nil, err
	}

	opLatency, err := meter.Float64Histogram("agentflow.checkpoint.latency_ms",
		metric.WithDescription("Checkpoint operation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	opErrors, err := meter.Int64Counter("agentflow.checkpoint.errors",
		metric.WithDescription("Number of checkpoint operation errors"),
	)
	if err != nil {
		return nil, err
	}

	contextSize, err := meter.Int64Histogram("agentflow.state.context_messages",
		metric.WithDescription("Messages in the persisted context per state write"),
	)
	if err != nil {
		return nil, err
	}

	repairedRemoved, err := meter.Int64Counter("agentflow.repair.removed_messages",
		metric.WithDescription("Corrupt messages removed by thread repair"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		operations:      operations,
		opLatency:       opLatency,
		opErrors:        opErrors,
		contextSize:     contextSize,
		repairedRemoved: repairedRemoved,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordOperation records one service operation.
func (m *otelMetrics) RecordOperation(ctx context.Context, op string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op", op),
	}

	m.operations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.opLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.opErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordStateWrite records the persisted context size.
func (m *otelMetrics) RecordStateWrite(ctx context.Context, contextMessages int) {
	m.contextSize.Record(ctx, int64(contextMessages))
}

// RecordRepair records a repair outcome.
func (m *otelMetrics) RecordRepair(ctx context.Context, removed int) {
	m.repairedRemoved.Add(ctx, int64(removed))
}
