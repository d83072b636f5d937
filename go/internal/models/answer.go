package models

import (
	"time"

	"github.com/google/uuid"
)

// Answer is one participant's current response to one question. At most one
// answer exists per (participant, item); resubmission replaces the prior
// value while the collection window is open.
type Answer struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	ItemID        uuid.UUID `json:"item_id"`
	OptionID      uuid.UUID `json:"option_id,omitempty"`
	FreeText      string    `json:"free_text,omitempty"`
	TimeTakenMs   int64     `json:"time_taken_ms"`
	SubmittedAt   time.Time `json:"submitted_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CountKey returns the tally bucket this answer falls into: the option ID for
// choice questions, the literal text for open-ended ones.
func (a Answer) CountKey() string {
	if a.OptionID != uuid.Nil {
		return a.OptionID.String()
	}
	return a.FreeText
}

// AggregateSnapshot is a consistent view of one item's tallies and answers,
// taken when the coordinator advances past the item.
type AggregateSnapshot struct {
	ItemID  uuid.UUID      `json:"item_id"`
	Counts  map[string]int `json:"counts"`
	Answers []Answer       `json:"answers"`
}
