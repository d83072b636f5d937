package live

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizlive/go/internal/identity"
	"github.com/mcdev12/quizlive/go/internal/models"
)

func newTestRegistry() (*Registry, *identity.StaticResolver) {
	resolver := identity.NewStaticResolver()
	return NewRegistry(resolver, clockwork.NewFakeClock()), resolver
}

func TestRegistry_GuestJoin(t *testing.T) {
	reg, _ := newTestRegistry()
	sessionID := uuid.New()

	p, resumed, err := reg.Join(context.Background(), sessionID, JoinRequest{
		Guest: &GuestProfile{DisplayName: "  Maya  ", ContactInfo: "maya@example.com"},
	})
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, "Maya", p.DisplayName)
	assert.Equal(t, models.IdentityKindGuest, p.IdentityKind)
	assert.True(t, p.Connected())
	assert.Equal(t, 1, reg.ConnectedCount(sessionID))
}

func TestRegistry_GuestProfileValidation(t *testing.T) {
	reg, _ := newTestRegistry()
	sessionID := uuid.New()

	cases := []struct {
		name    string
		profile GuestProfile
	}{
		{"blank display name", GuestProfile{DisplayName: "   ", ContactInfo: "a@example.com"}},
		{"malformed contact", GuestProfile{DisplayName: "Sam", ContactInfo: "not-an-email"}},
		{"empty contact", GuestProfile{DisplayName: "Sam"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := reg.Join(context.Background(), sessionID, JoinRequest{Guest: &tc.profile})
			assert.ErrorIs(t, err, ErrInvalidGuestProfile)
		})
	}

	_, _, err := reg.Join(context.Background(), sessionID, JoinRequest{})
	assert.ErrorIs(t, err, ErrInvalidGuestProfile)
}

func TestRegistry_AuthenticatedRejoinIsReconnect(t *testing.T) {
	reg, resolver := newTestRegistry()
	resolver.Add("ext-1", "Jordan")
	sessionID := uuid.New()

	p1, resumed, err := reg.Join(context.Background(), sessionID, JoinRequest{ExternalID: "ext-1"})
	require.NoError(t, err)
	require.False(t, resumed)

	p2, resumed, err := reg.Join(context.Background(), sessionID, JoinRequest{ExternalID: "ext-1"})
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Len(t, reg.Participants(sessionID), 1)
}

func TestRegistry_UnknownExternalIDRejected(t *testing.T) {
	reg, _ := newTestRegistry()

	_, _, err := reg.Join(context.Background(), uuid.New(), JoinRequest{ExternalID: "nobody"})
	assert.ErrorIs(t, err, ErrSessionNotJoinable)
}

func TestRegistry_ResumeRestoresIdentity(t *testing.T) {
	reg, _ := newTestRegistry()
	sessionID := uuid.New()

	p, _, err := reg.Join(context.Background(), sessionID, JoinRequest{
		Guest: &GuestProfile{DisplayName: "Maya", ContactInfo: "maya@example.com"},
	})
	require.NoError(t, err)

	_, err = reg.MarkDisconnected(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.ConnectedCount(sessionID))

	resumedP, resumed, err := reg.Join(context.Background(), sessionID, JoinRequest{ResumeID: p.ID})
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, p.ID, resumedP.ID)
	assert.Equal(t, "Maya", resumedP.DisplayName)
	assert.True(t, resumedP.Connected())
}

func TestRegistry_ResumeRejectsForeignParticipant(t *testing.T) {
	reg, _ := newTestRegistry()
	sessionA := uuid.New()
	sessionB := uuid.New()

	p, _, err := reg.Join(context.Background(), sessionA, JoinRequest{
		Guest: &GuestProfile{DisplayName: "Maya", ContactInfo: "maya@example.com"},
	})
	require.NoError(t, err)

	// A participant ID minted for session A never opens a door into B.
	_, _, err = reg.Join(context.Background(), sessionB, JoinRequest{ResumeID: p.ID})
	assert.ErrorIs(t, err, ErrSessionNotJoinable)

	_, _, err = reg.Join(context.Background(), sessionA, JoinRequest{ResumeID: uuid.New()})
	assert.ErrorIs(t, err, ErrSessionNotJoinable)
}

func TestRegistry_RestoreReseedsRoster(t *testing.T) {
	reg, _ := newTestRegistry()
	sessionID := uuid.New()

	persisted := []models.Participant{
		{
			ID:              uuid.New(),
			SessionID:       sessionID,
			DisplayName:     "Maya",
			IdentityKind:    models.IdentityKindGuest,
			ContactInfo:     "maya@example.com",
			ConnectionState: models.ConnectionStateConnected,
		},
		{
			ID:              uuid.New(),
			SessionID:       sessionID,
			DisplayName:     "Jordan",
			IdentityKind:    models.IdentityKindAuthenticated,
			ConnectionState: models.ConnectionStateConnected,
		},
	}
	reg.Restore(sessionID, persisted)

	// Everyone comes back disconnected; their transport did not survive the
	// restart.
	assert.Len(t, reg.Participants(sessionID), 2)
	assert.Equal(t, 0, reg.ConnectedCount(sessionID))

	got, ok := reg.Get(sessionID, persisted[0].ID)
	require.True(t, ok)
	assert.Equal(t, "Maya", got.DisplayName)
	assert.Equal(t, models.ConnectionStateDisconnected, got.ConnectionState)

	// Resume by participant ID works across the restart.
	resumedP, resumed, err := reg.Join(context.Background(), sessionID, JoinRequest{ResumeID: persisted[0].ID})
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, persisted[0].ID, resumedP.ID)
	assert.True(t, resumedP.Connected())
}

func TestRegistry_DisconnectKeepsParticipant(t *testing.T) {
	reg, _ := newTestRegistry()
	sessionID := uuid.New()

	p, _, err := reg.Join(context.Background(), sessionID, JoinRequest{
		Guest: &GuestProfile{DisplayName: "Sam", ContactInfo: "sam@example.com"},
	})
	require.NoError(t, err)

	gotSession, err := reg.MarkDisconnected(p.ID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, gotSession)

	kept, ok := reg.Get(sessionID, p.ID)
	require.True(t, ok)
	assert.Equal(t, models.ConnectionStateDisconnected, kept.ConnectionState)
	assert.Len(t, reg.Participants(sessionID), 1)
}

func TestRegistry_DropSessionReleasesIdentities(t *testing.T) {
	reg, _ := newTestRegistry()
	sessionID := uuid.New()

	p, _, err := reg.Join(context.Background(), sessionID, JoinRequest{
		Guest: &GuestProfile{DisplayName: "Sam", ContactInfo: "sam@example.com"},
	})
	require.NoError(t, err)

	reg.DropSession(sessionID)

	_, ok := reg.Get(sessionID, p.ID)
	assert.False(t, ok)
	_, ok = reg.SessionOf(p.ID)
	assert.False(t, ok)
	_, _, err = reg.Join(context.Background(), sessionID, JoinRequest{ResumeID: p.ID})
	assert.ErrorIs(t, err, ErrSessionNotJoinable)
}
