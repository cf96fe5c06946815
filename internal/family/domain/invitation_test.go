package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "Mira@Example.COM", want: "mira@example.com"},
		{raw: "  dev+family@example.org ", want: "dev+family@example.org"},
		{raw: "", wantErr: true},
		{raw: "not-an-email", wantErr: true},
		{raw: "Mira <mira@example.com>", wantErr: true},
		{raw: "a@b@c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeEmail(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestInvitation(t *testing.T) *Invitation {
	t.Helper()
	inv, err := NewInvitation(uuid.New(), "Kin@Example.com", uuid.New(), "digest", 0, now)
	require.NoError(t, err)
	return inv
}

func TestNewInvitation(t *testing.T) {
	inv := newTestInvitation(t)

	assert.Equal(t, "kin@example.com", inv.Email())
	assert.Equal(t, InvitationPending, inv.Status())
	assert.Equal(t, now.Add(7*24*time.Hour), inv.ExpiresAt())
	require.Len(t, inv.DomainEvents(), 1)
	assert.Equal(t, RoutingKeyInvitationCreated, inv.DomainEvents()[0].RoutingKey())
}

func TestInvitation_EffectiveStatus(t *testing.T) {
	inv := newTestInvitation(t)

	assert.Equal(t, InvitationPending, inv.EffectiveStatus(inv.ExpiresAt()))
	assert.Equal(t, InvitationExpired, inv.EffectiveStatus(inv.ExpiresAt().Add(time.Second)))
	assert.Equal(t, InvitationPending, inv.Status(), "reading the effective status does not mutate")
}

func TestInvitation_AcceptOnce(t *testing.T) {
	inv := newTestInvitation(t)
	inv.ClearDomainEvents()
	userID := uuid.New()

	require.NoError(t, inv.Accept(userID, now.Add(time.Hour)))
	assert.Equal(t, InvitationAccepted, inv.Status())
	require.NotNil(t, inv.AcceptedBy())
	assert.Equal(t, userID, *inv.AcceptedBy())
	require.Len(t, inv.DomainEvents(), 1)
	assert.Equal(t, RoutingKeyInvitationAccepted, inv.DomainEvents()[0].RoutingKey())
	accepted, ok := inv.DomainEvents()[0].(*InvitationAcceptedEvent)
	require.True(t, ok)
	assert.Equal(t, userID, accepted.UserID)
	assert.Equal(t, inv.PlanID(), accepted.PlanID)

	assert.ErrorIs(t, inv.Accept(uuid.New(), now.Add(2*time.Hour)), ErrInvalidOrExpiredInvitation)
	assert.False(t, inv.Expire(now.Add(30*24*time.Hour)), "an accepted invitation never expires")
	assert.Equal(t, InvitationAccepted, inv.EffectiveStatus(now.Add(30*24*time.Hour)))
}

func TestInvitation_AcceptAfterExpiry(t *testing.T) {
	inv := newTestInvitation(t)
	later := inv.ExpiresAt().Add(time.Minute)

	assert.ErrorIs(t, inv.Accept(uuid.New(), later), ErrInvalidOrExpiredInvitation)
	assert.True(t, inv.Expire(later))
	assert.Equal(t, InvitationExpired, inv.Status())
	assert.Nil(t, inv.AcceptedBy())
}

func TestInvitation_Revoke(t *testing.T) {
	inv := newTestInvitation(t)

	inv.ClearDomainEvents()
	require.NoError(t, inv.Revoke(now))
	assert.Equal(t, InvitationRevoked, inv.Status())
	require.Len(t, inv.DomainEvents(), 1)
	revoked, ok := inv.DomainEvents()[0].(*InvitationRevokedEvent)
	require.True(t, ok)
	assert.Equal(t, inv.Email(), revoked.Email)
	assert.ErrorIs(t, inv.Revoke(now), ErrInvalidOrExpiredInvitation)
	assert.ErrorIs(t, inv.Accept(uuid.New(), now), ErrInvalidOrExpiredInvitation)
}

func TestToken(t *testing.T) {
	token, hash, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, 43)
	assert.Len(t, hash, 64)

	again, err := HashToken(token)
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	other, otherHash, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
	assert.NotEqual(t, hash, otherHash)
}

func TestHashToken_Malformed(t *testing.T) {
	for _, token := range []string{"", "short", strings.Repeat("A", 42), "not base64 !!", strings.Repeat("A", 44)} {
		_, err := HashToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}
