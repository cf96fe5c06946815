package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/felixgeelhaar/perks/internal/family/domain"
	sharedDomain "github.com/felixgeelhaar/perks/internal/shared/domain"
	"github.com/felixgeelhaar/perks/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type recordingPublisher struct {
	keys     []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func invitation() domain.Notification {
	return domain.Notification{
		Type:    domain.NotificationInvitation,
		PlanID:  uuid.New(),
		Email:   "kid@example.com",
		Message: "You have been invited to join a family plan.",
		Token:   "secret-token",
	}
}

func TestLogNotifier_OmitsToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, NewLogNotifier(logger).Notify(context.Background(), invitation()))

	assert.Contains(t, buf.String(), "kid@example.com")
	assert.Contains(t, buf.String(), `"has_token":true`)
	assert.NotContains(t, buf.String(), "secret-token")
}

func TestPublisherNotifier(t *testing.T) {
	pub := &recordingPublisher{}
	n := invitation()

	require.NoError(t, NewPublisherNotifier(pub).Notify(context.Background(), n))
	require.Equal(t, []string{"notification.family.invitation"}, pub.keys)

	var got domain.Notification
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, n, got)

	pub.err = errors.New("broker down")
	assert.Error(t, NewPublisherNotifier(pub).Notify(context.Background(), n))
}

func TestBreakerNotifier_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	next := &mockNotifier{}
	next.On("Notify", mock.Anything, mock.Anything).Return(errors.New("broker down")).Times(2)
	metrics := observability.NewInMemoryMetrics()

	n := NewBreakerNotifier(next, BreakerConfig{MaxFailures: 2, Timeout: time.Hour}, nil, metrics)

	assert.Error(t, n.Notify(ctx, invitation()))
	assert.Error(t, n.Notify(ctx, invitation()))
	assert.Equal(t, "open", n.State())

	err := n.Notify(ctx, invitation())
	require.ErrorIs(t, err, ErrNotifierUnavailable)
	assert.Equal(t, sharedDomain.KindTransientStore, sharedDomain.KindOf(err))

	next.AssertNumberOfCalls(t, "Notify", 2)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricBreakerTransitions,
		observability.T("breaker", "notifier"), observability.T("state", "open")))
}

func TestBreakerNotifier_PassesThroughWhileClosed(t *testing.T) {
	next := &mockNotifier{}
	next.On("Notify", mock.Anything, mock.Anything).Return(nil)

	n := NewBreakerNotifier(next, BreakerConfig{}, nil, nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, n.Notify(context.Background(), invitation()))
	}
	assert.Equal(t, "closed", n.State())
	next.AssertNumberOfCalls(t, "Notify", 10)
}
