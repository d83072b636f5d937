package live

import (
	"context"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/identity"
	"github.com/mcdev12/quizlive/go/internal/models"
)

// GuestProfile is what an unauthenticated joiner must supply. ContactInfo is
// kept for post-session follow-up and is opaque beyond syntax validation.
type GuestProfile struct {
	DisplayName string `json:"display_name"`
	ContactInfo string `json:"contact_info"`
}

// JoinRequest identifies a joining party one of three ways: a stable
// external ID (authenticated), a guest profile, or a resume of an existing
// participant ID after a network blip.
type JoinRequest struct {
	ExternalID string
	Guest      *GuestProfile
	ResumeID   uuid.UUID
}

// Registry tracks who belongs to which session, their identity kind, and
// connection liveness. Participants are never hard-deleted while their
// session is live; disconnects only flip ConnectionState so guests can
// resume with the same identity.
type Registry struct {
	mu         sync.RWMutex
	clock      clockwork.Clock
	resolver   identity.Resolver
	bySession  map[uuid.UUID]map[uuid.UUID]*models.Participant
	byExternal map[uuid.UUID]map[uuid.UUID]uuid.UUID // session -> user -> participant
	owner      map[uuid.UUID]uuid.UUID               // participant -> session
}

// NewRegistry creates a registry resolving authenticated joins through the
// given resolver.
func NewRegistry(resolver identity.Resolver, clock clockwork.Clock) *Registry {
	return &Registry{
		clock:      clock,
		resolver:   resolver,
		bySession:  make(map[uuid.UUID]map[uuid.UUID]*models.Participant),
		byExternal: make(map[uuid.UUID]map[uuid.UUID]uuid.UUID),
		owner:      make(map[uuid.UUID]uuid.UUID),
	}
}

// Join adds a party to a session or resumes an existing participant. The
// returned bool reports a resume (same identity reconnecting) rather than a
// fresh join.
func (r *Registry) Join(ctx context.Context, sessionID uuid.UUID, req JoinRequest) (models.Participant, bool, error) {
	if req.ResumeID != uuid.Nil {
		return r.resume(sessionID, req.ResumeID)
	}

	if req.ExternalID != "" {
		user, err := r.resolver.Resolve(ctx, req.ExternalID)
		if err != nil {
			return models.Participant{}, false, ErrSessionNotJoinable
		}
		return r.joinAuthenticated(sessionID, user)
	}

	if req.Guest == nil {
		return models.Participant{}, false, ErrInvalidGuestProfile
	}
	return r.joinGuest(sessionID, *req.Guest)
}

func (r *Registry) joinAuthenticated(sessionID uuid.UUID, user identity.User) (models.Participant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Same user joining again is a reconnect, not a second participant.
	if pid, ok := r.byExternal[sessionID][user.ID]; ok {
		p := r.bySession[sessionID][pid]
		p.ConnectionState = models.ConnectionStateConnected
		p.LastSeenAt = r.clock.Now()
		return *p, true, nil
	}

	p := &models.Participant{
		ID:              uuid.New(),
		SessionID:       sessionID,
		DisplayName:     user.DisplayName,
		IdentityKind:    models.IdentityKindAuthenticated,
		ConnectionState: models.ConnectionStateConnected,
		JoinedAt:        r.clock.Now(),
		LastSeenAt:      r.clock.Now(),
	}
	r.insert(sessionID, p)
	if r.byExternal[sessionID] == nil {
		r.byExternal[sessionID] = make(map[uuid.UUID]uuid.UUID)
	}
	r.byExternal[sessionID][user.ID] = p.ID
	return *p, false, nil
}

func (r *Registry) joinGuest(sessionID uuid.UUID, profile GuestProfile) (models.Participant, bool, error) {
	if err := validateGuestProfile(profile); err != nil {
		return models.Participant{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := &models.Participant{
		ID:              uuid.New(),
		SessionID:       sessionID,
		DisplayName:     strings.TrimSpace(profile.DisplayName),
		IdentityKind:    models.IdentityKindGuest,
		ContactInfo:     profile.ContactInfo,
		ConnectionState: models.ConnectionStateConnected,
		JoinedAt:        r.clock.Now(),
		LastSeenAt:      r.clock.Now(),
	}
	r.insert(sessionID, p)
	return *p, false, nil
}

func (r *Registry) resume(sessionID, participantID uuid.UUID) (models.Participant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A participant ID minted for a different session never resumes here.
	owner, ok := r.owner[participantID]
	if !ok || owner != sessionID {
		return models.Participant{}, false, ErrSessionNotJoinable
	}

	p := r.bySession[sessionID][participantID]
	p.ConnectionState = models.ConnectionStateConnected
	p.LastSeenAt = r.clock.Now()
	return *p, true, nil
}

func (r *Registry) insert(sessionID uuid.UUID, p *models.Participant) {
	if r.bySession[sessionID] == nil {
		r.bySession[sessionID] = make(map[uuid.UUID]*models.Participant)
	}
	r.bySession[sessionID][p.ID] = p
	r.owner[p.ID] = sessionID
}

// Restore re-seeds a session's roster from persisted participants after a
// process restart. Everyone comes back disconnected; their transport is gone
// and resubscribing is what flips them connected again. Resume by participant
// ID works across the restart; an authenticated re-join minting a fresh
// participant is accepted instead of deduplicated, since the external-user
// mapping is not persisted.
func (r *Registry) Restore(sessionID uuid.UUID, participants []models.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range participants {
		cp := p
		cp.ConnectionState = models.ConnectionStateDisconnected
		r.insert(sessionID, &cp)
	}
}

// MarkDisconnected flips the participant to disconnected without removing it
// or its answers. Safe to call from a transport close handler.
func (r *Registry) MarkDisconnected(participantID uuid.UUID) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.owner[participantID]
	if !ok {
		return uuid.Nil, ErrUnknownSession
	}
	p := r.bySession[sessionID][participantID]
	p.ConnectionState = models.ConnectionStateDisconnected
	p.LastSeenAt = r.clock.Now()
	log.Debug().
		Str("participant_id", participantID.String()).
		Str("session_id", sessionID.String()).
		Msg("participant disconnected")
	return sessionID, nil
}

// MarkReconnected flips the participant back to connected.
func (r *Registry) MarkReconnected(participantID uuid.UUID) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.owner[participantID]
	if !ok {
		return uuid.Nil, ErrUnknownSession
	}
	p := r.bySession[sessionID][participantID]
	p.ConnectionState = models.ConnectionStateConnected
	p.LastSeenAt = r.clock.Now()
	return sessionID, nil
}

// SessionOf returns the session a participant belongs to.
func (r *Registry) SessionOf(participantID uuid.UUID) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.owner[participantID]
	return sessionID, ok
}

// Get returns a copy of one participant.
func (r *Registry) Get(sessionID, participantID uuid.UUID) (models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.bySession[sessionID][participantID]
	if !ok {
		return models.Participant{}, false
	}
	return *p, true
}

// Participants returns copies of all participants of a session.
func (r *Registry) Participants(sessionID uuid.UUID) []models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Participant, 0, len(r.bySession[sessionID]))
	for _, p := range r.bySession[sessionID] {
		out = append(out, *p)
	}
	return out
}

// ConnectedCount returns how many participants are currently connected.
func (r *Registry) ConnectedCount(sessionID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.bySession[sessionID] {
		if p.Connected() {
			n++
		}
	}
	return n
}

// DropSession releases a session's participants once it has ended. Guest
// identities do not outlive their session.
func (r *Registry) DropSession(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid := range r.bySession[sessionID] {
		delete(r.owner, pid)
	}
	delete(r.bySession, sessionID)
	delete(r.byExternal, sessionID)
}

func validateGuestProfile(profile GuestProfile) error {
	if strings.TrimSpace(profile.DisplayName) == "" {
		return ErrInvalidGuestProfile
	}
	if _, err := mail.ParseAddress(profile.ContactInfo); err != nil {
		return ErrInvalidGuestProfile
	}
	return nil
}
