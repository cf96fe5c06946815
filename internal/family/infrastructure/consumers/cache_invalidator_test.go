package consumers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/internal/family/domain"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Invalidate(ctx context.Context, planID uuid.UUID) error {
	return m.Called(ctx, planID).Error(0)
}

func TestCacheInvalidator_ThroughInProcessBus(t *testing.T) {
	ctx := context.Background()
	inv, err := domain.NewInvitation(uuid.New(), "kid@example.com", uuid.New(), "digest", 0, time.Now())
	require.NoError(t, err)

	cache := &mockCache{}
	cache.On("Invalidate", mock.Anything, inv.PlanID()).Return(nil).Once()

	bus := eventbus.NewInProcessEventBus(nil)
	bus.RegisterConsumer(NewCacheInvalidator(cache, nil))

	msgs, err := outbox.NewMessages(inv.DomainEvents())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, bus.Publish(ctx, msgs[0].RoutingKey, msgs[0].Payload))

	cache.AssertExpectations(t)
}

func TestCacheInvalidator_IgnoresEventsWithoutPlan(t *testing.T) {
	cache := &mockCache{}
	c := NewCacheInvalidator(cache, nil)

	payload, err := json.Marshal(map[string]string{"other": "x"})
	require.NoError(t, err)
	err = c.Handle(context.Background(), &eventbus.ConsumedEvent{RoutingKey: "family.plan.created", Payload: payload})
	require.NoError(t, err)
	cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)

	assert.Error(t, c.Handle(context.Background(), &eventbus.ConsumedEvent{RoutingKey: "family.plan.created", Payload: []byte("{")}))
}
