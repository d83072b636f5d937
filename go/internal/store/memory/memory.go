package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/quizlive/go/internal/models"
	"github.com/mcdev12/quizlive/go/internal/store"
)

// Store is an in-memory session store for tests and single-node development.
type Store struct {
	mu           sync.RWMutex
	sessions     map[uuid.UUID]models.Session
	participants map[uuid.UUID]map[uuid.UUID]models.Participant
	snapshots    map[uuid.UUID]map[uuid.UUID]models.AggregateSnapshot
}

func New() *Store {
	return &Store{
		sessions:     make(map[uuid.UUID]models.Session),
		participants: make(map[uuid.UUID]map[uuid.UUID]models.Participant),
		snapshots:    make(map[uuid.UUID]map[uuid.UUID]models.AggregateSnapshot),
	}
}

func (s *Store) SaveSession(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *Store) LoadSession(_ context.Context, sessionID uuid.UUID) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return models.Session{}, store.ErrNotFound
	}
	return session.Clone(), nil
}

func (s *Store) SaveParticipant(_ context.Context, participant models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.participants[participant.SessionID] == nil {
		s.participants[participant.SessionID] = make(map[uuid.UUID]models.Participant)
	}
	s.participants[participant.SessionID][participant.ID] = participant
	return nil
}

func (s *Store) ListParticipants(_ context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Participant, 0, len(s.participants[sessionID]))
	for _, p := range s.participants[sessionID] {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) SaveAnswerSnapshot(_ context.Context, sessionID uuid.UUID, snapshot models.AggregateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshots[sessionID] == nil {
		s.snapshots[sessionID] = make(map[uuid.UUID]models.AggregateSnapshot)
	}
	s.snapshots[sessionID][snapshot.ItemID] = snapshot
	return nil
}

// Snapshot returns a recorded item result, for tests.
func (s *Store) Snapshot(sessionID, itemID uuid.UUID) (models.AggregateSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[sessionID][itemID]
	return snap, ok
}
