package eventbus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConsumer struct {
	name       string
	eventTypes []string
	events     []*eventbus.ConsumedEvent
	err        error
	calls      *[]string
}

func (m *mockConsumer) EventTypes() []string {
	return m.eventTypes
}

func (m *mockConsumer) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	m.events = append(m.events, event)
	if m.calls != nil {
		*m.calls = append(*m.calls, m.name)
	}
	return m.err
}

func TestConsumerRegistry_Match(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)
	plans := &mockConsumer{eventTypes: []string{"family.plan.created", "family.plan.canceled"}}
	everything := &mockConsumer{eventTypes: []string{"family.#", "family.plan.created"}}
	registry.Register(plans)
	registry.Register(everything)

	tests := []struct {
		routingKey string
		want       []eventbus.EventConsumer
	}{
		{"family.plan.created", []eventbus.EventConsumer{plans, everything}},
		{"family.plan.canceled", []eventbus.EventConsumer{plans, everything}},
		{"family.invitation.accepted", []eventbus.EventConsumer{everything}},
		{"family", []eventbus.EventConsumer{everything}},
		{"familyx.plan.created", nil},
		{"billing.credits.consumed", nil},
	}
	for _, tt := range tests {
		t.Run(tt.routingKey, func(t *testing.T) {
			assert.Equal(t, tt.want, registry.Match(tt.routingKey))
		})
	}
	assert.Equal(t, 4, registry.Len())
}

func TestConsumerRegistry_DispatchInRegistrationOrder(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)
	var calls []string
	for _, name := range []string{"cache", "audit", "mailer"} {
		registry.Register(&mockConsumer{name: name, eventTypes: []string{"family.#"}, calls: &calls})
	}

	require.NoError(t, registry.Dispatch(context.Background(), &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "family.member.removed",
	}))
	assert.Equal(t, []string{"cache", "audit", "mailer"}, calls)
}

func TestConsumerRegistry_DispatchJoinsFailures(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)
	errCache := errors.New("cache unavailable")
	errMail := errors.New("smtp timeout")
	failing := &mockConsumer{eventTypes: []string{"family.invitation.created"}, err: errCache}
	healthy := &mockConsumer{eventTypes: []string{"family.invitation.created"}}
	mailer := &mockConsumer{eventTypes: []string{"family.#"}, err: errMail}
	registry.Register(failing)
	registry.Register(healthy)
	registry.Register(mailer)

	err := registry.Dispatch(context.Background(), &eventbus.ConsumedEvent{RoutingKey: "family.invitation.created"})

	assert.ErrorIs(t, err, errCache)
	assert.ErrorIs(t, err, errMail)
	assert.Len(t, healthy.events, 1, "later consumers still run")
}

func TestConsumerRegistry_DispatchWithoutConsumers(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)

	assert.NoError(t, registry.Dispatch(context.Background(), &eventbus.ConsumedEvent{RoutingKey: "family.plan.created"}))
	assert.Zero(t, registry.Len())
}

func TestDecodeEvent(t *testing.T) {
	event, err := eventbus.DecodeEvent("family.plan.created", []byte(`{"aggregate_type":"FamilyPlan","payload":{"tier":"PRO"}}`))
	require.NoError(t, err)
	assert.Equal(t, "family.plan.created", event.RoutingKey)
	assert.JSONEq(t, `{"tier":"PRO"}`, string(event.Payload))

	_, err = eventbus.DecodeEvent("family.plan.created", []byte("{"))
	assert.ErrorContains(t, err, "decode family.plan.created envelope")
}
