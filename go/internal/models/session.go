package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentType defines what kind of content a session runs.
type ContentType string

const (
	ContentTypeQuiz   ContentType = "QUIZ"
	ContentTypeSurvey ContentType = "SURVEY"
)

// Valid reports whether the content type is a known value.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeQuiz, ContentTypeSurvey:
		return true
	}
	return false
}

// SessionStatus defines the lifecycle state of a live session.
type SessionStatus string

const (
	SessionStatusCreated SessionStatus = "CREATED"
	SessionStatusLobby   SessionStatus = "LOBBY"
	SessionStatusActive  SessionStatus = "ACTIVE"
	SessionStatusEnded   SessionStatus = "ENDED"
)

// Valid reports whether the status is a known value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusCreated, SessionStatusLobby, SessionStatusActive, SessionStatusEnded:
		return true
	}
	return false
}

// ItemRef points at one entry of a session's fixed item order.
type ItemRef struct {
	ItemID uuid.UUID `json:"item_id"`
	Kind   ItemKind  `json:"item_kind"`
}

// Session represents one live run of a quiz or survey.
//
// The order is fixed at creation and immutable afterwards. Cursor is the
// index of the currently active item, -1 before the session starts.
type Session struct {
	ID          uuid.UUID     `json:"id"`
	JoinCode    string        `json:"join_code"`
	ContentType ContentType   `json:"content_type"`
	HostID      uuid.UUID     `json:"host_id"`
	Order       []ItemRef     `json:"order"`
	Cursor      int           `json:"cursor"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
}

// CurrentRef returns the item ref under the cursor, if any.
func (s Session) CurrentRef() (ItemRef, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Order) {
		return ItemRef{}, false
	}
	return s.Order[s.Cursor], true
}

// Clone returns a deep copy safe to hand outside the session worker.
func (s Session) Clone() Session {
	out := s
	out.Order = make([]ItemRef, len(s.Order))
	copy(out.Order, s.Order)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}
