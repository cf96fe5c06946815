package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/perks/internal/family/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/sony/gobreaker/v2"
)

// ErrNotifierUnavailable is returned without calling the wrapped notifier
// while the breaker is open.
var ErrNotifierUnavailable = sharedDomain.NewError(sharedDomain.KindTransientStore, "notifier_unavailable", "notification delivery is temporarily disabled")

// BreakerConfig configures the circuit breaker around a notifier.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32

	// Timeout is how long the breaker stays open before a trial call.
	Timeout time.Duration

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
}

// DefaultBreakerConfig returns the defaults used when nothing is configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		MaxRequests: 1,
	}
}

// BreakerNotifier stops calling a failing notifier for a while so a broker
// outage does not slow every command down.
type BreakerNotifier struct {
	next    domain.Notifier
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerNotifier wraps next with a circuit breaker.
func NewBreakerNotifier(next domain.Notifier, cfg BreakerConfig, logger *slog.Logger, metrics observability.Metrics) *BreakerNotifier {
	defaults := DefaultBreakerConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	settings := gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.Counter(observability.MetricBreakerTransitions, 1,
				observability.T("breaker", name),
				observability.T("state", to.String()),
			)
		},
	}
	return &BreakerNotifier{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (n *BreakerNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.next.Notify(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrNotifierUnavailable.Wrap(err)
	}
	return err
}

// State reports the breaker state, e.g. "closed" or "open".
func (n *BreakerNotifier) State() string {
	return n.breaker.State().String()
}
