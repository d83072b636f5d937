package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies a session event on the wire.
type Type string

const (
	TypeParticipantJoined       Type = "ParticipantJoined"
	TypeParticipantDisconnected Type = "ParticipantDisconnected"
	TypeParticipantReconnected  Type = "ParticipantReconnected"
	TypeItemChanged             Type = "ItemChanged"
	TypeTimerTick               Type = "TimerTick"
	TypeTimerExpired            Type = "TimerExpired"
	TypeAggregateUpdate         Type = "AggregateUpdate"
	TypeAnswerReceived          Type = "AnswerReceived"
	TypeSessionEnded            Type = "SessionEnded"
	TypeStateSnapshot           Type = "StateSnapshot"
)

// Scope controls who receives an event: everyone in the session, or the host
// connection only. Live tallies and per-participant submission notices are
// host-only so participants cannot see the running result.
type Scope string

const (
	ScopePublic Scope = "PUBLIC"
	ScopeHost   Scope = "HOST"
)

// Envelope is the wire form of every session event. Payload is the
// type-specific JSON body.
type Envelope struct {
	ID        string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	Type      Type            `json:"type"`
	Scope     Scope           `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New builds an envelope with a fresh event ID and the marshaled payload.
func New(sessionID uuid.UUID, typ Type, scope Scope, at time.Time, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return Envelope{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      typ,
		Scope:     scope,
		Timestamp: at,
		Payload:   body,
	}, nil
}
