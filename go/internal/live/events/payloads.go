package events

import (
	"time"

	"github.com/mcdev12/quizlive/go/internal/models"
)

// Event payload types shared between the session worker, the broadcast hub
// and the gateway.

// ItemChangedPayload announces the new active item after start() or next().
type ItemChangedPayload struct {
	Status       models.SessionStatus `json:"status"`
	Cursor       int                  `json:"cursor"`
	Item         models.Item          `json:"item"`
	TimerSeconds int                  `json:"timer_seconds"`
}

// TimerTickPayload carries the authoritative remaining time, once per second.
type TimerTickPayload struct {
	ItemID           string `json:"item_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// TimerExpiredPayload marks the end of an item's collection window. The item
// does not auto-advance; progression stays an explicit host action.
type TimerExpiredPayload struct {
	ItemID string `json:"item_id"`
}

// AggregateUpdatePayload is the host-only live tally after a submission.
// PrevKey presence marks a resubmission that moved buckets; PrevCount then
// carries the old bucket's new total, which is legitimately zero when the
// mover was its last occupant.
type AggregateUpdatePayload struct {
	ItemID    string         `json:"item_id"`
	Key       string         `json:"key"`
	Count     int            `json:"count"`
	PrevKey   string         `json:"prev_key,omitempty"`
	PrevCount int            `json:"prev_count"`
	Counts    map[string]int `json:"counts"`
}

// AnswerReceivedPayload is the host-only per-participant submission notice.
type AnswerReceivedPayload struct {
	ParticipantID string `json:"participant_id"`
	ItemID        string `json:"item_id"`
	Answered      int    `json:"answered"`
	Resubmission  bool   `json:"resubmission"`
}

// ParticipantJoinedPayload announces a new or resumed participant.
type ParticipantJoinedPayload struct {
	Participant models.Participant `json:"participant"`
	Resumed     bool               `json:"resumed"`
}

// ParticipantLivenessPayload announces a disconnect or reconnect.
type ParticipantLivenessPayload struct {
	ParticipantID string    `json:"participant_id"`
	At            time.Time `json:"at"`
}

// SessionEndedPayload is the terminal event of a session.
type SessionEndedPayload struct {
	SessionID string    `json:"session_id"`
	EndedAt   time.Time `json:"ended_at"`
}

// StateSnapshotPayload is delivered to a subscriber immediately on
// subscribe, instead of replaying missed deltas. A reconnecting participant
// sees exactly what a never-disconnected one observes at that instant.
type StateSnapshotPayload struct {
	Session          models.Session `json:"session"`
	Item             *models.Item   `json:"item,omitempty"`
	RemainingSeconds int            `json:"remaining_seconds"`
	Expired          bool           `json:"expired"`
	AlreadyAnswered  bool           `json:"already_answered"`
	Counts           map[string]int `json:"counts,omitempty"`
}
