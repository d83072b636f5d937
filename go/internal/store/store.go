package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mcdev12/quizlive/go/internal/models"
)

// ErrNotFound is returned when a session does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store is the durable record of sessions, participants and answer
// snapshots. The session core writes through it asynchronously: a failing
// write is retried by the implementation's own policy and never blocks
// in-memory progression.
type Store interface {
	SaveSession(ctx context.Context, session models.Session) error
	LoadSession(ctx context.Context, sessionID uuid.UUID) (models.Session, error)
	SaveParticipant(ctx context.Context, participant models.Participant) error
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
	SaveAnswerSnapshot(ctx context.Context, sessionID uuid.UUID, snapshot models.AggregateSnapshot) error
}
