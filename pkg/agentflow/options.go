package agentflow

import (
	"log/slog"

	"github.com/10xHub/agentflow-cli/pkg/agentflow/observability"
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger used for operation logging.
// Default: no logging.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSpanManager sets the trace span manager.
// Default: observability.NoopSpanManager.
func WithSpanManager(sm observability.SpanManager) ServiceOption {
	return func(s *Service) {
		if sm != nil {
			s.spans = sm
		}
	}
}

// WithRedactedErrors suppresses raw store error text in failure results,
// replacing it with a generic per-operation message. The full error is
// still logged and recorded on the span. Use in production where store
// internals must not reach API responses.
func WithRedactedErrors() ServiceOption {
	return func(s *Service) {
		s.redactErrors = true
	}
}
