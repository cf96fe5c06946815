package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/perks/internal/family/application/commands"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// CacheInvalidator drops cached plan views when any family event arrives.
// Handlers already invalidate after commit; this catches writes made by
// other processes sharing the cache.
type CacheInvalidator struct {
	cache  commands.PlanCache
	logger *slog.Logger
}

// NewCacheInvalidator creates a consumer for family events.
func NewCacheInvalidator(cache commands.PlanCache, logger *slog.Logger) *CacheInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidator{cache: cache, logger: logger}
}

func (c *CacheInvalidator) EventTypes() []string {
	return []string{"family.#"}
}

func (c *CacheInvalidator) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var body struct {
		PlanID uuid.UUID `json:"plan_id"`
	}
	if err := json.Unmarshal(event.Payload, &body); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.RoutingKey, err)
	}
	if body.PlanID == uuid.Nil {
		c.logger.WarnContext(ctx, "family event without plan id",
			"routing_key", event.RoutingKey,
			"event_id", event.EventID,
		)
		return nil
	}
	return c.cache.Invalidate(ctx, body.PlanID)
}
