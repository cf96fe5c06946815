package application

import (
	"context"

	"github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// NewEventMetadata creates command-scoped metadata for domain events. The
// request correlation id is reused when it is a valid UUID.
func NewEventMetadata(ctx context.Context, actorID uuid.UUID) domain.EventMetadata {
	correlationID, err := uuid.Parse(observability.CorrelationIDFromContext(ctx))
	if err != nil {
		correlationID = uuid.New()
	}
	return domain.EventMetadata{
		CorrelationID: correlationID,
		CausationID:   uuid.New(),
		UserID:        actorID,
	}
}

// ApplyEventMetadata stamps metadata on every event that accepts it and has
// none yet, so an event re-queued by a retried unit keeps its first stamp.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		setter, ok := event.(metadataSetter)
		if !ok || !event.Metadata().IsZero() {
			continue
		}
		setter.SetMetadata(metadata)
	}
}
