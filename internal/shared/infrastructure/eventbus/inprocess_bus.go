package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/perks/pkg/observability"
)

// InProcessEventBus is a Publisher that hands outbox messages straight to
// local consumers. It runs after RabbitMQ in the worker's fanout and alone
// when no broker is configured.
type InProcessEventBus struct {
	mu       sync.Mutex
	registry *ConsumerRegistry
	logger   *slog.Logger
	metrics  observability.Metrics
}

func NewInProcessEventBus(logger *slog.Logger) *InProcessEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessEventBus{
		registry: NewConsumerRegistry(logger),
		logger:   logger,
		metrics:  observability.NoopMetrics{},
	}
}

// WithMetrics counts consumed events by routing key and outcome.
func (b *InProcessEventBus) WithMetrics(m observability.Metrics) *InProcessEventBus {
	if m != nil {
		b.metrics = m
	}
	return b
}

func (b *InProcessEventBus) RegisterConsumer(consumer EventConsumer) {
	b.registry.Register(consumer)
}

// Publish delivers synchronously and never fails: a local consumer cannot be
// retried on its own, so undecodable envelopes and consumer errors are logged
// and the outbox still marks the message published.
func (b *InProcessEventBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	event, err := DecodeEvent(routingKey, payload)
	if err != nil {
		b.logger.ErrorContext(ctx, "dropping undecodable event", "routing_key", routingKey, "error", err)
		b.count(routingKey, "invalid")
		return nil
	}
	if err := b.registry.Dispatch(ctx, event); err != nil {
		b.count(routingKey, "failed")
		return nil
	}
	b.count(routingKey, "ok")
	return nil
}

func (b *InProcessEventBus) count(routingKey, outcome string) {
	b.metrics.Counter(observability.MetricEventsConsumed, 1,
		observability.T("routing_key", routingKey),
		observability.T("outcome", outcome),
	)
}

func (b *InProcessEventBus) Close() error {
	return nil
}
