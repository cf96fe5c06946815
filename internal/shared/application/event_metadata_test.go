package application

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventMetadata(t *testing.T) {
	t.Run("creates metadata with actor ID", func(t *testing.T) {
		actorID := uuid.New()

		metadata := NewEventMetadata(context.Background(), actorID)

		assert.Equal(t, actorID, metadata.UserID)
		assert.NotEqual(t, uuid.Nil, metadata.CorrelationID)
		assert.NotEqual(t, uuid.Nil, metadata.CausationID)
	})

	t.Run("reuses request correlation ID", func(t *testing.T) {
		correlationID := uuid.New()
		ctx := observability.WithCorrelationID(context.Background(), correlationID.String())

		metadata := NewEventMetadata(ctx, uuid.New())

		assert.Equal(t, correlationID, metadata.CorrelationID)
	})

	t.Run("ignores correlation IDs that are not UUIDs", func(t *testing.T) {
		ctx := observability.WithCorrelationID(context.Background(), "req-42")

		metadata := NewEventMetadata(ctx, uuid.New())

		assert.NotEqual(t, uuid.Nil, metadata.CorrelationID)
	})

	t.Run("generates unique IDs without a request context", func(t *testing.T) {
		actorID := uuid.New()

		metadata1 := NewEventMetadata(context.Background(), actorID)
		metadata2 := NewEventMetadata(context.Background(), actorID)

		assert.NotEqual(t, metadata1.CorrelationID, metadata2.CorrelationID)
		assert.NotEqual(t, metadata1.CausationID, metadata2.CausationID)
	})
}

type testEvent struct {
	domain.BaseEvent
}

// nonSetterEvent is a domain event that doesn't implement SetMetadata.
type nonSetterEvent struct {
	eventID uuid.UUID
}

func (e nonSetterEvent) EventID() uuid.UUID             { return e.eventID }
func (e nonSetterEvent) AggregateID() uuid.UUID         { return uuid.Nil }
func (e nonSetterEvent) AggregateType() string          { return "test" }
func (e nonSetterEvent) RoutingKey() string             { return "test.event" }
func (e nonSetterEvent) OccurredAt() time.Time          { return time.Time{} }
func (e nonSetterEvent) Metadata() domain.EventMetadata { return domain.EventMetadata{} }

func TestApplyEventMetadata(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("applies metadata to events with setter", func(t *testing.T) {
		actorID := uuid.New()
		event := &testEvent{
			BaseEvent: domain.NewBaseEvent(uuid.New(), "test", "test.created", now),
		}
		metadata := NewEventMetadata(context.Background(), actorID)

		ApplyEventMetadata([]domain.DomainEvent{event}, metadata)

		assert.Equal(t, actorID, event.Metadata().UserID)
		assert.Equal(t, metadata.CorrelationID, event.Metadata().CorrelationID)
		assert.Equal(t, metadata.CausationID, event.Metadata().CausationID)
	})

	t.Run("skips events without setter", func(t *testing.T) {
		event := nonSetterEvent{eventID: uuid.New()}
		metadata := NewEventMetadata(context.Background(), uuid.New())

		require.NotPanics(t, func() {
			ApplyEventMetadata([]domain.DomainEvent{event}, metadata)
		})
		assert.Equal(t, domain.EventMetadata{}, event.Metadata())
	})

	t.Run("applies metadata to multiple events", func(t *testing.T) {
		actorID := uuid.New()
		event1 := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "test", "test.event1", now)}
		event2 := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "test", "test.event2", now)}
		metadata := NewEventMetadata(context.Background(), actorID)

		ApplyEventMetadata([]domain.DomainEvent{event1, event2}, metadata)

		assert.Equal(t, actorID, event1.Metadata().UserID)
		assert.Equal(t, actorID, event2.Metadata().UserID)
		assert.Equal(t, metadata.CorrelationID, event2.Metadata().CorrelationID)
	})

	t.Run("keeps the first stamp", func(t *testing.T) {
		event := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "test", "test.created", now)}
		first := NewEventMetadata(context.Background(), uuid.New())

		ApplyEventMetadata([]domain.DomainEvent{event}, first)
		ApplyEventMetadata([]domain.DomainEvent{event}, NewEventMetadata(context.Background(), uuid.New()))

		assert.Equal(t, first, event.Metadata())
	})

	t.Run("handles nil event list", func(t *testing.T) {
		metadata := NewEventMetadata(context.Background(), uuid.New())

		require.NotPanics(t, func() {
			ApplyEventMetadata(nil, metadata)
		})
	})
}
