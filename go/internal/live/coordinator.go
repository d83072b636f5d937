package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/broadcast"
	"github.com/mcdev12/quizlive/go/internal/content"
	"github.com/mcdev12/quizlive/go/internal/live/events"
	"github.com/mcdev12/quizlive/go/internal/models"
	"github.com/mcdev12/quizlive/go/internal/store"
)

// Config wires the coordinator's collaborators.
type Config struct {
	Content  content.Provider
	Registry *Registry
	Store    store.Store
	Hub      *broadcast.Hub
	Clock    clockwork.Clock
}

// Coordinator owns every live session's state machine. It is the only
// component permitted to advance session state: each session gets one worker
// goroutine, and all host commands, submissions and timer ticks for that
// session are serialized through it. Different sessions share nothing
// mutable and run fully in parallel.
type Coordinator struct {
	content  content.Provider
	registry *Registry
	store    store.Store
	hub      *broadcast.Hub
	clock    clockwork.Clock

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	workers map[uuid.UUID]*worker
	ended   map[uuid.UUID]models.Session
	codes   map[string]uuid.UUID
}

// errSessionRetired is an internal signal that a session reached its terminal
// state and its worker is gone. Callers answer from the tombstone instead.
var errSessionRetired = errors.New("session retired")

// NewCoordinator creates a coordinator. Shutdown stops all session workers.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		content:  cfg.Content,
		registry: cfg.Registry,
		store:    cfg.Store,
		hub:      cfg.Hub,
		clock:    cfg.Clock,
		baseCtx:  ctx,
		cancel:   cancel,
		workers:  make(map[uuid.UUID]*worker),
		ended:    make(map[uuid.UUID]models.Session),
		codes:    make(map[string]uuid.UUID),
	}
}

// CreateRequest describes a new session.
type CreateRequest struct {
	HostID      uuid.UUID
	ContentType models.ContentType
	Order       []models.ItemRef
}

// SubmitRequest is one participant answer submission.
type SubmitRequest struct {
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
	ItemID        uuid.UUID
	OptionID      uuid.UUID
	FreeText      string
	TimeTakenMs   int64
}

// Create validates the order, resolves every item from the content service
// once, and spawns the session's worker. The session lands in the lobby.
func (c *Coordinator) Create(ctx context.Context, req CreateRequest) (models.Session, error) {
	if !req.ContentType.Valid() {
		return models.Session{}, fmt.Errorf("%w: unknown content type %q", ErrInvalidOrder, req.ContentType)
	}
	if len(req.Order) == 0 {
		return models.Session{}, fmt.Errorf("%w: empty order", ErrInvalidOrder)
	}

	items := make(map[uuid.UUID]models.Item, len(req.Order))
	for _, ref := range req.Order {
		if !ref.Kind.Valid() {
			return models.Session{}, fmt.Errorf("%w: unknown item kind %q", ErrInvalidOrder, ref.Kind)
		}
		item, err := c.content.GetItem(ctx, ref.ItemID)
		if err != nil {
			return models.Session{}, fmt.Errorf("%w: item %s: %v", ErrInvalidOrder, ref.ItemID, err)
		}
		if item.Kind != ref.Kind {
			return models.Session{}, fmt.Errorf("%w: item %s is a %s, ref says %s", ErrInvalidOrder, ref.ItemID, item.Kind, ref.Kind)
		}
		items[ref.ItemID] = item
	}

	order := make([]models.ItemRef, len(req.Order))
	copy(order, req.Order)

	session := models.Session{
		ID:          uuid.New(),
		ContentType: req.ContentType,
		HostID:      req.HostID,
		Order:       order,
		Cursor:      -1,
		Status:      models.SessionStatusLobby,
		CreatedAt:   c.clock.Now(),
	}

	w := newWorker(c, session, items)

	c.mu.Lock()
	w.session.JoinCode = c.allocateCodeLocked(session.ID)
	c.workers[session.ID] = w
	c.mu.Unlock()

	// The worker goroutine starts only after the persist enqueue and the
	// returned clone are taken; the join code is already routable, so reading
	// w.session past this point would race a concurrent join.
	w.persistSession()
	created := w.session.Clone()
	go w.run(c.baseCtx)

	log.Info().
		Str("session_id", created.ID.String()).
		Str("join_code", FormatJoinCode(created.JoinCode)).
		Int("items", len(order)).
		Msg("session created")
	return created, nil
}

// Restore reloads a persisted session after a process restart and spawns a
// fresh worker for it. The roster is rehydrated from the store so existing
// participants resume with their identity. Answers for the item that was open
// at crash time are gone; a timed item restarts with its full countdown.
func (c *Coordinator) Restore(ctx context.Context, sessionID uuid.UUID) (models.Session, error) {
	session, err := c.store.LoadSession(ctx, sessionID)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if session.Status == models.SessionStatusEnded {
		// No worker for a finished session; keep the terminal state around so
		// End and Snapshot still answer.
		c.mu.Lock()
		c.ended[session.ID] = session.Clone()
		c.mu.Unlock()
		return session, nil
	}

	items := make(map[uuid.UUID]models.Item, len(session.Order))
	for _, ref := range session.Order {
		item, err := c.content.GetItem(ctx, ref.ItemID)
		if err != nil {
			return models.Session{}, fmt.Errorf("failed to refetch item %s: %w", ref.ItemID, err)
		}
		items[ref.ItemID] = item
	}

	participants, err := c.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load participants: %w", err)
	}
	c.registry.Restore(sessionID, participants)

	w := newWorker(c, session, items)
	if ref, ok := session.CurrentRef(); ok && session.Status == models.SessionStatusActive {
		item := items[ref.ItemID]
		if item.Kind == models.ItemKindQuestion {
			w.agg.Open(item)
		}
		if item.Timed() {
			w.timer.Arm(item.ID, item.TimerSeconds)
		}
	}

	c.mu.Lock()
	if session.JoinCode != "" {
		c.codes[session.JoinCode] = session.ID
	}
	c.workers[session.ID] = w
	c.mu.Unlock()

	go w.run(c.baseCtx)
	log.Info().Str("session_id", sessionID.String()).Str("status", string(session.Status)).Msg("session restored")
	return session.Clone(), nil
}

// Start moves the session from lobby to active and arms item 0.
func (c *Coordinator) Start(ctx context.Context, sessionID, hostID uuid.UUID) (models.Session, error) {
	s, err := send(ctx, c, sessionID, func(resp chan reply[models.Session]) any {
		return startCmd{hostID: hostID, resp: resp}
	})
	if errors.Is(err, errSessionRetired) {
		return models.Session{}, ErrAlreadyStarted
	}
	return s, err
}

// Next advances past the current item. fromCursor is the cursor the host
// observed; a stale value is rejected with ErrDuplicateTransition so a
// double-click cannot advance twice.
func (c *Coordinator) Next(ctx context.Context, sessionID, hostID uuid.UUID, fromCursor int) (models.Session, error) {
	s, err := send(ctx, c, sessionID, func(resp chan reply[models.Session]) any {
		return nextCmd{hostID: hostID, fromCursor: fromCursor, resp: resp}
	})
	if errors.Is(err, errSessionRetired) {
		return models.Session{}, ErrNotActive
	}
	return s, err
}

// End force-ends the session from lobby or active. Idempotent: once the
// session is ended the terminal state keeps answering even after its worker
// has retired.
func (c *Coordinator) End(ctx context.Context, sessionID, hostID uuid.UUID) (models.Session, error) {
	s, err := send(ctx, c, sessionID, func(resp chan reply[models.Session]) any {
		return endCmd{hostID: hostID, resp: resp}
	})
	if errors.Is(err, errSessionRetired) {
		terminal, _ := c.endedSession(sessionID)
		if hostID != terminal.HostID {
			return models.Session{}, ErrNotHost
		}
		return terminal, nil
	}
	return s, err
}

// JoinByCode resolves a human-entered join code and joins that session.
func (c *Coordinator) JoinByCode(ctx context.Context, code string, req JoinRequest) (JoinResult, error) {
	c.mu.RLock()
	sessionID, ok := c.codes[code]
	c.mu.RUnlock()
	if !ok {
		return JoinResult{}, ErrSessionNotJoinable
	}
	return c.Join(ctx, sessionID, req)
}

// Join adds a participant to a session in lobby or active state.
func (c *Coordinator) Join(ctx context.Context, sessionID uuid.UUID, req JoinRequest) (JoinResult, error) {
	res, err := send(ctx, c, sessionID, func(resp chan reply[JoinResult]) any {
		return joinCmd{req: req, resp: resp}
	})
	if errors.Is(err, errSessionRetired) {
		return JoinResult{}, ErrSessionNotJoinable
	}
	return res, err
}

// Submit records a participant's answer for the active item.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) error {
	_, err := send(ctx, c, req.SessionID, func(resp chan reply[struct{}]) any {
		return submitCmd{
			participantID: req.ParticipantID,
			itemID:        req.ItemID,
			optionID:      req.OptionID,
			freeText:      req.FreeText,
			timeTakenMs:   req.TimeTakenMs,
			resp:          resp,
		}
	})
	if errors.Is(err, errSessionRetired) {
		return ErrSessionNotJoinable
	}
	return err
}

// Subscribe attaches a party (host or participant) to the session's event
// feed. The first delivery on the returned feed is a full state snapshot.
func (c *Coordinator) Subscribe(ctx context.Context, sessionID, partyID uuid.UUID) (*broadcast.Subscriber, error) {
	sub, err := send(ctx, c, sessionID, func(resp chan reply[*broadcast.Subscriber]) any {
		return subscribeCmd{partyID: partyID, resp: resp}
	})
	if errors.Is(err, errSessionRetired) {
		return nil, ErrSessionNotJoinable
	}
	return sub, err
}

// Snapshot returns the session state a given party would render right now.
func (c *Coordinator) Snapshot(ctx context.Context, sessionID, partyID uuid.UUID) (events.StateSnapshotPayload, error) {
	snap, err := send(ctx, c, sessionID, func(resp chan reply[events.StateSnapshotPayload]) any {
		return snapshotCmd{partyID: partyID, resp: resp}
	})
	if errors.Is(err, errSessionRetired) {
		terminal, _ := c.endedSession(sessionID)
		return events.StateSnapshotPayload{Session: terminal}, nil
	}
	return snap, err
}

// Disconnect marks a participant disconnected. Called from transport close
// handlers; safe for unknown participants.
func (c *Coordinator) Disconnect(participantID uuid.UUID) {
	sessionID, ok := c.registry.SessionOf(participantID)
	if !ok {
		return
	}
	c.mu.RLock()
	w, ok := c.workers[sessionID]
	c.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case w.cmdCh <- disconnectCmd{participantID: participantID}:
	case <-w.stopped:
	case <-c.baseCtx.Done():
	}
}

// Shutdown stops every session worker.
func (c *Coordinator) Shutdown() {
	c.cancel()
}

func (c *Coordinator) allocateCodeLocked(sessionID uuid.UUID) string {
	for {
		code := NewJoinCode()
		if _, taken := c.codes[code]; !taken {
			c.codes[code] = sessionID
			return code
		}
	}
}

func (c *Coordinator) releaseCode(code string) {
	c.mu.Lock()
	delete(c.codes, code)
	c.mu.Unlock()
}

func (c *Coordinator) lookup(sessionID uuid.UUID) (*worker, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if w, ok := c.workers[sessionID]; ok {
		return w, nil
	}
	if _, ok := c.ended[sessionID]; ok {
		return nil, errSessionRetired
	}
	return nil, ErrUnknownSession
}

// retire replaces a finished session's worker with its terminal state. Called
// by the worker itself on its way out.
func (c *Coordinator) retire(sessionID uuid.UUID, terminal models.Session) {
	c.mu.Lock()
	delete(c.workers, sessionID)
	c.ended[sessionID] = terminal
	c.mu.Unlock()
}

func (c *Coordinator) endedSession(sessionID uuid.UUID) (models.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.ended[sessionID]
	if !ok {
		return models.Session{}, false
	}
	return s.Clone(), true
}

// send routes one command to a session's worker and waits for its reply.
func send[T any](ctx context.Context, c *Coordinator, sessionID uuid.UUID, build func(chan reply[T]) any) (T, error) {
	var zero T
	w, err := c.lookup(sessionID)
	if err != nil {
		return zero, err
	}

	resp := make(chan reply[T], 1)
	select {
	case w.cmdCh <- build(resp):
	case <-w.stopped:
		// The worker retired between lookup and delivery.
		return zero, errSessionRetired
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-c.baseCtx.Done():
		return zero, c.baseCtx.Err()
	}

	select {
	case r := <-resp:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
