package domain

import (
	"context"

	"github.com/google/uuid"
)

// SubscriptionRepository defines access for subscription persistence.
//
// Save is a guarded upsert: a subscription with Version 0 is inserted and any
// other is updated only while the stored version still equals Version. A lost
// race returns shared domain.ErrConcurrentUpdate. On success Version is bumped.
type SubscriptionRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	FindByFamilyPlanID(ctx context.Context, planID uuid.UUID) ([]*Subscription, error)
	Save(ctx context.Context, sub *Subscription) error
}
