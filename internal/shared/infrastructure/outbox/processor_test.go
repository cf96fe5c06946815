package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokerStub records what reaches it and refuses the routing keys in reject.
type brokerStub struct {
	mu        sync.Mutex
	delivered []string
	scopes    []string
	reject    map[string]bool
	down      bool
}

func newBrokerStub(reject ...string) *brokerStub {
	b := &brokerStub{reject: make(map[string]bool)}
	for _, key := range reject {
		b.reject[key] = true
	}
	return b
}

func (b *brokerStub) Publish(ctx context.Context, routingKey string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scopes = append(b.scopes, observability.CorrelationIDFromContext(ctx))
	if b.down || b.reject[routingKey] {
		return errors.New("broker refused " + routingKey)
	}
	b.delivered = append(b.delivered, routingKey)
	return nil
}

func (b *brokerStub) Close() error { return nil }

func (b *brokerStub) Delivered() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.delivered...)
}

// unreachableStore fails every read, as a dropped database connection would.
type unreachableStore struct {
	*outbox.InMemoryRepository
}

func (unreachableStore) GetUnpublished(context.Context, int) ([]*outbox.Message, error) {
	return nil, errors.New("connection reset")
}

func familyMessage(routingKey string) *outbox.Message {
	return &outbox.Message{
		EventID:       uuid.New(),
		AggregateType: "FamilyPlan",
		AggregateID:   uuid.New(),
		EventType:     routingKey,
		RoutingKey:    routingKey,
		Payload:       []byte(`{"routing_key":"` + routingKey + `"}`),
	}
}

func seed(t *testing.T, repo *outbox.InMemoryRepository, keys ...string) []*outbox.Message {
	t.Helper()
	msgs := make([]*outbox.Message, 0, len(keys))
	for _, key := range keys {
		msgs = append(msgs, familyMessage(key))
	}
	require.NoError(t, repo.SaveBatch(context.Background(), msgs))
	return msgs
}

func TestProcessor_DeliversPendingMessagesInOrder(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	broker := newBrokerStub()
	p := outbox.NewProcessor(repo, broker, outbox.DefaultProcessorConfig(), nil)

	msgs := seed(t, repo, "family.plan.created", "family.invitation.created")

	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Equal(t, []string{"family.plan.created", "family.invitation.created"}, broker.Delivered())
	for _, msg := range msgs {
		assert.True(t, msg.IsPublished(), msg.RoutingKey)
	}

	stats := p.GetStats()
	assert.Equal(t, uint64(2), stats.PublishedCount)
	assert.NotNil(t, stats.LastProcessedAt)
	assert.NotNil(t, stats.OldestMessageAt)
	assert.GreaterOrEqual(t, stats.LagSeconds, 0.0)

	// A second pass has nothing left to send.
	require.NoError(t, p.ProcessOnce(context.Background()))
	assert.Len(t, broker.Delivered(), 2)
}

func TestProcessor_PublishesUnderTheEventCorrelationID(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	broker := newBrokerStub()
	p := outbox.NewProcessor(repo, broker, outbox.DefaultProcessorConfig(), nil)

	correlationID := uuid.New()
	msgs := seed(t, repo, "family.plan.created", "family.plan.canceled")
	msgs[0].Metadata = []byte(`{"correlation_id":"` + correlationID.String() + `"}`)

	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Equal(t, []string{correlationID.String(), ""}, broker.scopes)
}

func TestProcessor_FailureDoesNotBlockTheBatch(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	broker := newBrokerStub("family.member.removed")
	p := outbox.NewProcessor(repo, broker, outbox.DefaultProcessorConfig(), nil)

	msgs := seed(t, repo, "family.member.removed", "family.plan.canceled")

	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Equal(t, []string{"family.plan.canceled"}, broker.Delivered())
	failed := msgs[0]
	assert.False(t, failed.IsPublished())
	assert.Equal(t, 1, failed.RetryCount)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "family.member.removed")

	stats := p.GetStats()
	assert.Equal(t, uint64(1), stats.PublishedCount)
	assert.Equal(t, uint64(1), stats.FailedCount)
	assert.NotNil(t, stats.LastErrorAt)
}

func TestProcessor_DeadLetters(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		priorTries int
		wantDead   bool
	}{
		{"first failure with retries left", 3, 0, false},
		{"last allowed attempt", 3, 2, true},
		{"single attempt allowed", 1, 0, true},
		{"retries disabled", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := outbox.NewInMemoryRepository()
			cfg := outbox.DefaultProcessorConfig()
			cfg.MaxRetries = tt.maxRetries
			p := outbox.NewProcessor(repo, newBrokerStub("family.invitation.expired"), cfg, nil)

			msg := seed(t, repo, "family.invitation.expired")[0]
			msg.RetryCount = tt.priorTries

			require.NoError(t, p.ProcessOnce(context.Background()))

			assert.Equal(t, tt.wantDead, msg.IsDeadLettered())
			if tt.wantDead {
				require.NotNil(t, msg.DeadLetterReason)
				assert.Equal(t, uint64(1), p.GetStats().DeadCount)
				assert.Equal(t, tt.priorTries, msg.RetryCount)
			} else {
				assert.Equal(t, tt.priorTries+1, msg.RetryCount)
			}
		})
	}
}

func TestProcessor_WaitsForBackoffBeforeRetrying(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	broker := newBrokerStub()
	broker.down = true
	cfg := outbox.DefaultProcessorConfig()
	cfg.RetryBackoffBase = time.Hour
	cfg.RetryBackoffMax = 2 * time.Hour
	p := outbox.NewProcessor(repo, broker, cfg, nil)

	msg := seed(t, repo, "family.invitation.created")[0]

	require.NoError(t, p.ProcessOnce(context.Background()))
	require.NotNil(t, msg.NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *msg.NextRetryAt, time.Minute)

	broker.mu.Lock()
	broker.down = false
	broker.mu.Unlock()

	// Not due yet, so even a healthy broker does not see it.
	require.NoError(t, p.ProcessOnce(context.Background()))
	assert.Empty(t, broker.Delivered())
	assert.Equal(t, 1, msg.RetryCount)
}

func TestProcessor_StoreErrorIsReturned(t *testing.T) {
	store := unreachableStore{outbox.NewInMemoryRepository()}
	p := outbox.NewProcessor(store, newBrokerStub(), outbox.DefaultProcessorConfig(), nil)

	err := p.ProcessOnce(context.Background())

	require.Error(t, err)
	assert.NotNil(t, p.GetStats().LastErrorAt)
}

func TestProcessor_RecordsMetrics(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	metrics := observability.NewInMemoryMetrics()
	p := outbox.NewProcessor(repo, newBrokerStub("family.member.removed"), outbox.DefaultProcessorConfig(), nil).
		WithMetrics(metrics)

	seed(t, repo, "family.plan.created", "family.member.removed")

	require.NoError(t, p.ProcessOnce(context.Background()))

	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricEventsPublished,
		observability.T("routing_key", "family.plan.created")))
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricEventsFailed,
		observability.T("routing_key", "family.member.removed")))
}

func TestProcessor_RunUntilCanceled(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	broker := newBrokerStub()
	p := outbox.NewProcessor(repo, broker, outbox.ProcessorConfig{
		PollInterval:     10 * time.Millisecond,
		BatchSize:        10,
		MaxRetries:       3,
		RetryBackoffBase: time.Millisecond,
		RetryBackoffMax:  10 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, p.IsRunning, time.Second, 5*time.Millisecond)

	seed(t, repo, "family.plan.created")
	require.Eventually(t, func() bool {
		return len(broker.Delivered()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, p.IsRunning())
	assert.False(t, p.GetStats().IsRunning)
}

func TestProcessor_CleanupDropsOnlyOldPublished(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	p := outbox.NewProcessor(repo, newBrokerStub(), outbox.DefaultProcessorConfig(), nil)

	msgs := seed(t, repo, "family.plan.created", "family.plan.canceled", "family.member.joined")
	longAgo := time.Now().AddDate(0, 0, -30)
	recently := time.Now().Add(-time.Minute)
	msgs[0].PublishedAt = &longAgo
	msgs[1].PublishedAt = &recently

	p.Cleanup(context.Background())

	var left []int64
	for _, msg := range repo.Messages() {
		left = append(left, msg.ID)
	}
	assert.Equal(t, []int64{msgs[1].ID, msgs[2].ID}, left)
}

func TestProcessor_IdleStats(t *testing.T) {
	p := outbox.NewProcessor(outbox.NewInMemoryRepository(), newBrokerStub(), outbox.DefaultProcessorConfig(), nil)

	stats := p.GetStats()
	assert.False(t, stats.IsRunning)
	assert.Zero(t, stats.PublishedCount)
	assert.Nil(t, stats.LastProcessedAt)
}
