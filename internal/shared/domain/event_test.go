package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seatFreed struct {
	domain.BaseEvent
	PlanID uuid.UUID `json:"plan_id"`
}

func TestNewBaseEvent(t *testing.T) {
	planID := uuid.New()
	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))

	event := &seatFreed{
		BaseEvent: domain.NewBaseEvent(planID, "FamilyPlan", "family.member.removed", at),
		PlanID:    planID,
	}

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, planID, event.AggregateID())
	assert.Equal(t, "FamilyPlan", event.AggregateType())
	assert.Equal(t, "family.member.removed", event.RoutingKey())
	assert.Equal(t, time.UTC, event.OccurredAt().Location())
	assert.True(t, event.OccurredAt().Equal(at))
	assert.True(t, event.Metadata().IsZero())

	body, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan_id":"`+planID.String()+`"}`, string(body), "envelope fields stay out of the payload")
}

func TestBaseEvent_SetMetadata(t *testing.T) {
	meta := domain.EventMetadata{CorrelationID: uuid.New(), CausationID: uuid.New(), UserID: uuid.New()}

	event := domain.NewBaseEvent(uuid.New(), "FamilyPlan", "family.plan.created", time.Now())
	event.SetMetadata(meta)

	assert.Equal(t, meta, event.Metadata())
	assert.False(t, event.Metadata().IsZero())

	body, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"correlation_id":"`+meta.CorrelationID.String()+`"`)
}
