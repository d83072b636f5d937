package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityKind distinguishes authenticated users from session-scoped guests.
type IdentityKind string

const (
	IdentityKindAuthenticated IdentityKind = "AUTHENTICATED"
	IdentityKindGuest         IdentityKind = "GUEST"
)

// ConnectionState tracks transport liveness for a participant.
type ConnectionState string

const (
	ConnectionStateConnected    ConnectionState = "CONNECTED"
	ConnectionStateDisconnected ConnectionState = "DISCONNECTED"
)

// Participant is one connected party other than the host.
//
// Guests keep the same participant ID across reconnects for the lifetime of
// their session; ContactInfo is only set for guests and is opaque to the
// session core.
type Participant struct {
	ID              uuid.UUID       `json:"id"`
	SessionID       uuid.UUID       `json:"session_id"`
	DisplayName     string          `json:"display_name"`
	IdentityKind    IdentityKind    `json:"identity_kind"`
	ContactInfo     string          `json:"contact_info,omitempty"`
	ConnectionState ConnectionState `json:"connection_state"`
	JoinedAt        time.Time       `json:"joined_at"`
	LastSeenAt      time.Time       `json:"last_seen_at"`
}

// Connected reports whether the participant is currently live on a transport.
func (p Participant) Connected() bool {
	return p.ConnectionState == ConnectionStateConnected
}
