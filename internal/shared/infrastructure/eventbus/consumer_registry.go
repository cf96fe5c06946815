package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

type binding struct {
	pattern  string
	consumer EventConsumer
}

// ConsumerRegistry routes events to consumers by routing key. Consumers run
// in registration order.
type ConsumerRegistry struct {
	mu       sync.RWMutex
	bindings []binding
	logger   *slog.Logger
}

func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{logger: logger}
}

// Register binds consumer to each of its event types.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pattern := range consumer.EventTypes() {
		r.bindings = append(r.bindings, binding{pattern: pattern, consumer: consumer})
	}
}

// Match returns the consumers bound to routingKey, each at most once.
func (r *ConsumerRegistry) Match(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []EventConsumer
	seen := make(map[EventConsumer]struct{})
	for _, b := range r.bindings {
		if !matchKey(b.pattern, routingKey) {
			continue
		}
		if _, dup := seen[b.consumer]; dup {
			continue
		}
		seen[b.consumer] = struct{}{}
		matched = append(matched, b.consumer)
	}
	return matched
}

func matchKey(pattern, routingKey string) bool {
	prefix, wildcard := strings.CutSuffix(pattern, ".#")
	if !wildcard {
		return pattern == routingKey
	}
	return routingKey == prefix || strings.HasPrefix(routingKey, prefix+".")
}

// Dispatch hands event to every matching consumer. A failing consumer does
// not stop the rest; all failures are joined.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	var errs []error
	for _, c := range r.Match(event.RoutingKey) {
		if err := c.Handle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "event consumer failed",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports the number of bindings.
func (r *ConsumerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
