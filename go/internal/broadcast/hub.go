package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/live/events"
)

const defaultSubscriberBuffer = 256

// Relay is an optional sink that sees every published envelope, e.g. a NATS
// relay for off-process consumers.
type Relay interface {
	Publish(env events.Envelope) error
}

// Hub fans session events out to all currently-subscribed members of a
// session. Events for a session are published from that session's worker in
// order, and each subscriber owns a FIFO channel, so delivery order per
// subscriber matches production order. There is no ordering across sessions
// and no cross-session leakage.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Subscriber]bool
	relay Relay
}

// Subscriber is one connected party's event feed.
type Subscriber struct {
	PartyID uuid.UUID
	Host    bool

	sessionID uuid.UUID
	ch        chan events.Envelope
	hub       *Hub
	closed    bool
}

// NewHub creates a hub. relay may be nil.
func NewHub(relay Relay) *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[*Subscriber]bool),
		relay: relay,
	}
}

// Subscribe adds a member to a session's room.
func (h *Hub) Subscribe(sessionID, partyID uuid.UUID, host bool) *Subscriber {
	sub := &Subscriber{
		PartyID:   partyID,
		Host:      host,
		sessionID: sessionID,
		ch:        make(chan events.Envelope, defaultSubscriberBuffer),
		hub:       h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Subscriber]bool)
	}
	h.rooms[sessionID][sub] = true

	log.Debug().
		Str("session_id", sessionID.String()).
		Str("party_id", partyID.String()).
		Bool("host", host).
		Int("members", len(h.rooms[sessionID])).
		Msg("subscriber joined room")
	return sub
}

// C returns the subscriber's event feed. The channel closes on Close and
// when the session's room is torn down.
func (s *Subscriber) C() <-chan events.Envelope {
	return s.ch
}

// Close removes the subscriber from its room. Idempotent.
func (s *Subscriber) Close() {
	s.hub.unsubscribe(s)
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscriber) {
	room, ok := h.rooms[sub.sessionID]
	if !ok || !room[sub] {
		return
	}
	delete(room, sub)
	close(sub.ch)
	sub.closed = true
	if len(room) == 0 {
		delete(h.rooms, sub.sessionID)
	}
}

// Publish delivers an envelope to every subscribed member the scope allows,
// at most once each. A subscriber that cannot keep up is dropped rather than
// allowed to stall the session.
func (h *Hub) Publish(sessionID uuid.UUID, env events.Envelope) {
	if h.relay != nil {
		if err := h.relay.Publish(env); err != nil {
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("event relay publish failed")
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.rooms[sessionID] {
		if env.Scope == events.ScopeHost && !sub.Host {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			log.Warn().
				Str("session_id", sessionID.String()).
				Str("party_id", sub.PartyID.String()).
				Msg("subscriber buffer full, dropping subscriber")
			h.removeLocked(sub)
		}
	}
}

// SendTo delivers an envelope to a single subscriber, used for the
// snapshot-on-subscribe handshake. Ordering relative to later Publish calls
// is preserved because both run on the session worker.
func (h *Hub) SendTo(sub *Subscriber, env events.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- env:
	default:
		h.removeLocked(sub)
	}
}

// CloseRoom tears down a session's room after its terminal event.
func (h *Hub) CloseRoom(sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.rooms[sessionID] {
		close(sub.ch)
		sub.closed = true
	}
	delete(h.rooms, sessionID)
}

// Members returns the current number of subscribers in a session's room.
func (h *Hub) Members(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
