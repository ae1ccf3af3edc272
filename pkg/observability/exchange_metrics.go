package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ExchangeMetrics holds the instruments for the pending-exchange lifecycle.
// When no meter provider is configured the otel global default is a no-op,
// so recording is always safe.
type ExchangeMetrics struct {
	admitted      metric.Int64Counter
	conflicts     metric.Int64Counter
	completed     metric.Int64Counter
	failed        metric.Int64Counter
	relayDuration metric.Float64Histogram
}

// NewExchangeMetrics registers the exchange instruments on the global meter
func NewExchangeMetrics() (*ExchangeMetrics, error) {
	meter := otel.Meter("chat-relay/exchange")

	admitted, err := meter.Int64Counter("exchange_admitted_total",
		metric.WithDescription("Exchanges admitted into the pending tracker"))
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("exchange_conflicts_total",
		metric.WithDescription("Send attempts rejected because a reply was already pending"))
	if err != nil {
		return nil, err
	}
	completed, err := meter.Int64Counter("exchange_completed_total",
		metric.WithDescription("Exchanges resolved with a relay reply"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("exchange_failed_total",
		metric.WithDescription("Exchanges resolved as failed, by cause"))
	if err != nil {
		return nil, err
	}
	relayDuration, err := meter.Float64Histogram("relay_call_duration_seconds",
		metric.WithDescription("Wall-clock duration of relay webhook calls"))
	if err != nil {
		return nil, err
	}

	return &ExchangeMetrics{
		admitted:      admitted,
		conflicts:     conflicts,
		completed:     completed,
		failed:        failed,
		relayDuration: relayDuration,
	}, nil
}

// RecordAdmitted counts a successful admission
func (m *ExchangeMetrics) RecordAdmitted(ctx context.Context) {
	if m == nil {
		return
	}
	m.admitted.Add(ctx, 1)
}

// RecordConflict counts a rejected admission
func (m *ExchangeMetrics) RecordConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1)
}

// RecordCompleted counts a completed exchange
func (m *ExchangeMetrics) RecordCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.completed.Add(ctx, 1)
}

// RecordFailed counts a failed exchange. The cause distinguishes relay
// failures from client-declared timeouts in telemetry.
func (m *ExchangeMetrics) RecordFailed(ctx context.Context, cause string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
}

// RecordRelayDuration records the latency of one relay call
func (m *ExchangeMetrics) RecordRelayDuration(ctx context.Context, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.relayDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.Bool("success", success)))
}
