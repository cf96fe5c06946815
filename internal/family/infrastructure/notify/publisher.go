package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/eventbus"
)

// RoutingKeyPrefix is prepended to the notification type to form the routing
// key, e.g. "notification.family.invitation".
const RoutingKeyPrefix = "notification."

// PublisherNotifier hands notifications to a message broker for a delivery
// service to pick up. The invitation token travels only on this path.
type PublisherNotifier struct {
	publisher eventbus.Publisher
}

// NewPublisherNotifier creates a notifier that publishes through publisher.
func NewPublisherNotifier(publisher eventbus.Publisher) *PublisherNotifier {
	return &PublisherNotifier{publisher: publisher}
}

func (n *PublisherNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.publisher.Publish(ctx, RoutingKeyPrefix+string(msg.Type), payload)
}
