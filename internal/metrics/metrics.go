package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	core "github.com/cuongceg/massrelay/internal/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the relay's OpenTelemetry instruments.
type Metrics struct {
	deliveriesReceived metric.Int64Counter
	messagesForwarded  metric.Int64Counter
	forwardFailures    metric.Int64Counter
	ackFailures        metric.Int64Counter
	publishDuration    metric.Float64Histogram
}

// New creates every instrument on meter.
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.deliveriesReceived, err = meter.Int64Counter(
		"relay.deliveries.received",
		metric.WithDescription("Deliveries consumed from the source queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deliveriesReceived counter: %w", err)
	}

	m.messagesForwarded, err = meter.Int64Counter(
		"relay.messages.forwarded",
		metric.WithDescription("Messages published to the target and confirmed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesForwarded counter: %w", err)
	}

	m.forwardFailures, err = meter.Int64Counter(
		"relay.forward.failures",
		metric.WithDescription("Deliveries left unacknowledged because the publish failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create forwardFailures counter: %w", err)
	}

	m.ackFailures, err = meter.Int64Counter(
		"relay.ack.failures",
		metric.WithDescription("Forwarded deliveries whose source acknowledgment failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ackFailures counter: %w", err)
	}

	m.publishDuration, err = meter.Float64Histogram(
		"relay.publish.duration",
		metric.WithDescription("Time from publish to confirmation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publishDuration histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) DeliveryReceived(ctx context.Context) {
	m.deliveriesReceived.Add(ctx, 1)
}

func (m *Metrics) Forwarded(ctx context.Context) {
	m.messagesForwarded.Add(ctx, 1)
}

func (m *Metrics) ForwardFailed(ctx context.Context) {
	m.forwardFailures.Add(ctx, 1)
}

func (m *Metrics) AckFailed(ctx context.Context) {
	m.ackFailures.Add(ctx, 1)
}

// ObservePublish records one publish attempt, tagged with its outcome.
func (m *Metrics) ObservePublish(ctx context.Context, r core.Route, elapsed time.Duration, err error) {
	m.publishDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("exchange", r.Exchange),
		attribute.String("outcome", outcome(err)),
	))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, core.ErrNacked):
		return "nacked"
	case errors.Is(err, core.ErrUnroutable):
		return "unroutable"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
