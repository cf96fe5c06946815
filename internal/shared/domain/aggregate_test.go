package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type testAggregate struct {
	domain.BaseAggregateRoot
}

func TestNewBaseAggregateRoot(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	agg := domain.NewBaseAggregateRoot(now)

	assert.NotEqual(t, uuid.Nil, agg.ID())
	assert.Equal(t, now, agg.CreatedAt())
	assert.Equal(t, now, agg.UpdatedAt())
	assert.Equal(t, 0, agg.Version())
	assert.Empty(t, agg.DomainEvents())
}

func TestBaseAggregateRoot_Events(t *testing.T) {
	agg := &testAggregate{BaseAggregateRoot: domain.NewBaseAggregateRoot(time.Now())}

	agg.AddDomainEvent(domain.NewBaseEvent(agg.ID(), "Test", "test.one", time.Now()))
	agg.AddDomainEvent(domain.NewBaseEvent(agg.ID(), "Test", "test.two", time.Now()))
	assert.Len(t, agg.DomainEvents(), 2)
	for _, e := range agg.DomainEvents() {
		assert.Equal(t, agg.ID(), e.AggregateID())
	}

	agg.ClearDomainEvents()
	assert.Empty(t, agg.DomainEvents())
}

func TestRehydrateBaseAggregateRoot(t *testing.T) {
	id := uuid.New()
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	agg := domain.RehydrateBaseAggregateRoot(id, created, updated, 7)
	assert.Equal(t, id, agg.ID())
	assert.Equal(t, 7, agg.Version())

	agg.MarkPersisted()
	assert.Equal(t, 8, agg.Version())

	later := updated.Add(time.Minute)
	agg.Touch(later)
	assert.Equal(t, later, agg.UpdatedAt())
	assert.Equal(t, created, agg.CreatedAt())
}
