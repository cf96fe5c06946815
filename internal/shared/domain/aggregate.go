package domain

import (
	"time"

	"github.com/google/uuid"
)

// BaseAggregateRoot carries identity, timestamps, pending domain events and the
// persisted version used for guarded writes.
//
// The version is the value read from storage. Repositories write with
// "WHERE version = <Version()>" and bump it, so a stale copy never overwrites a
// newer one.
type BaseAggregateRoot struct {
	id           uuid.UUID
	createdAt    time.Time
	updatedAt    time.Time
	domainEvents []DomainEvent
	version      int
}

// NewBaseAggregateRoot creates a fresh aggregate stamped at now.
func NewBaseAggregateRoot(now time.Time) BaseAggregateRoot {
	now = now.UTC()
	return BaseAggregateRoot{
		id:        uuid.New(),
		createdAt: now,
		updatedAt: now,
	}
}

// RehydrateBaseAggregateRoot recreates an aggregate from persisted state.
func RehydrateBaseAggregateRoot(id uuid.UUID, createdAt, updatedAt time.Time, version int) BaseAggregateRoot {
	return BaseAggregateRoot{
		id:        id,
		createdAt: createdAt,
		updatedAt: updatedAt,
		version:   version,
	}
}

func (a *BaseAggregateRoot) ID() uuid.UUID        { return a.id }
func (a *BaseAggregateRoot) CreatedAt() time.Time { return a.createdAt }
func (a *BaseAggregateRoot) UpdatedAt() time.Time { return a.updatedAt }

// Version returns the version the aggregate was loaded with.
func (a *BaseAggregateRoot) Version() int {
	return a.version
}

// Touch updates the updatedAt timestamp.
func (a *BaseAggregateRoot) Touch(now time.Time) {
	a.updatedAt = now.UTC()
}

// DomainEvents returns all uncommitted domain events.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents removes all uncommitted domain events.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// AddDomainEvent records a domain event for the outbox.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// MarkPersisted advances the version after a successful guarded write.
func (a *BaseAggregateRoot) MarkPersisted() {
	a.version++
}
