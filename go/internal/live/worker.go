package live

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/broadcast"
	"github.com/mcdev12/quizlive/go/internal/live/events"
	"github.com/mcdev12/quizlive/go/internal/models"
	"github.com/mcdev12/quizlive/go/internal/store"
)

// reply carries a command result back to the caller.
type reply[T any] struct {
	val T
	err error
}

type startCmd struct {
	hostID uuid.UUID
	resp   chan reply[models.Session]
}

type nextCmd struct {
	hostID     uuid.UUID
	fromCursor int
	resp       chan reply[models.Session]
}

type endCmd struct {
	hostID uuid.UUID
	resp   chan reply[models.Session]
}

type joinCmd struct {
	req  JoinRequest
	resp chan reply[JoinResult]
}

type submitCmd struct {
	participantID uuid.UUID
	itemID        uuid.UUID
	optionID      uuid.UUID
	freeText      string
	timeTakenMs   int64
	resp          chan reply[struct{}]
}

type subscribeCmd struct {
	partyID uuid.UUID
	resp    chan reply[*broadcast.Subscriber]
}

type snapshotCmd struct {
	partyID uuid.UUID
	resp    chan reply[events.StateSnapshotPayload]
}

type disconnectCmd struct {
	participantID uuid.UUID
}

// JoinResult is what a successful join returns: the (possibly resumed)
// participant plus a session snapshot to render from.
type JoinResult struct {
	Participant models.Participant
	Session     models.Session
}

type persistJob func(ctx context.Context, st store.Store) error

// worker is the single writer for one session. It owns the Session, the
// timer engine and the aggregator; every transition, tick and submission is
// serialized through its loop, so concurrent host or participant calls never
// race on shared state. Persistence runs on a side goroutine so store
// latency never stalls the countdown or the answer path.
type worker struct {
	coord   *Coordinator
	session models.Session
	items   map[uuid.UUID]models.Item
	timer   *TimerEngine
	agg     *Aggregator

	cmdCh     chan any
	persistCh chan persistJob

	// stopped is closed when the worker retires; senders that already hold
	// this worker observe it and fall back to the coordinator's tombstone.
	stopped chan struct{}
}

func newWorker(coord *Coordinator, session models.Session, items map[uuid.UUID]models.Item) *worker {
	return &worker{
		coord:     coord,
		session:   session,
		items:     items,
		timer:     NewTimerEngine(coord.clock),
		agg:       NewAggregator(coord.clock),
		cmdCh:     make(chan any),
		persistCh: make(chan persistJob, 64),
		stopped:   make(chan struct{}),
	}
}

func (w *worker) run(ctx context.Context) {
	go w.persistLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("session_id", w.session.ID.String()).Msg("session worker shutting down")
			return
		case cmd := <-w.cmdCh:
			w.handle(ctx, cmd)
		case <-w.timer.C():
			w.handleTimerFire()
		}

		// Ended sessions do not keep goroutines alive for the life of the
		// process; the worker retires once the terminal reply is out.
		if w.session.Status == models.SessionStatusEnded {
			w.retire()
			return
		}
	}
}

// retire swaps the worker for a tombstone on the coordinator, unblocks any
// sender still holding this worker, and lets the persist loop drain its
// remaining queue before exiting.
func (w *worker) retire() {
	w.coord.retire(w.session.ID, w.session.Clone())
	close(w.stopped)
	close(w.persistCh)
	log.Info().Str("session_id", w.session.ID.String()).Msg("session worker retired")
}

func (w *worker) handle(ctx context.Context, cmd any) {
	switch c := cmd.(type) {
	case startCmd:
		s, err := w.start(c.hostID)
		c.resp <- reply[models.Session]{val: s, err: err}
	case nextCmd:
		s, err := w.next(c.hostID, c.fromCursor)
		c.resp <- reply[models.Session]{val: s, err: err}
	case endCmd:
		s, err := w.end(c.hostID)
		c.resp <- reply[models.Session]{val: s, err: err}
	case joinCmd:
		res, err := w.join(ctx, c.req)
		c.resp <- reply[JoinResult]{val: res, err: err}
	case submitCmd:
		err := w.submit(c)
		c.resp <- reply[struct{}]{err: err}
	case subscribeCmd:
		sub, err := w.subscribe(c.partyID)
		c.resp <- reply[*broadcast.Subscriber]{val: sub, err: err}
	case snapshotCmd:
		c.resp <- reply[events.StateSnapshotPayload]{val: w.stateSnapshot(c.partyID)}
	case disconnectCmd:
		w.disconnect(c.participantID)
	}
}

func (w *worker) start(hostID uuid.UUID) (models.Session, error) {
	if hostID != w.session.HostID {
		return models.Session{}, ErrNotHost
	}
	if w.session.Status != models.SessionStatusLobby {
		return models.Session{}, ErrAlreadyStarted
	}
	if w.coord.registry.ConnectedCount(w.session.ID) == 0 {
		return models.Session{}, ErrNoParticipants
	}

	now := w.coord.clock.Now()
	w.session.Status = models.SessionStatusActive
	w.session.StartedAt = &now
	w.session.Cursor = 0
	w.activateCurrent()
	w.persistSession()

	log.Info().
		Str("session_id", w.session.ID.String()).
		Int("items", len(w.session.Order)).
		Msg("session started")
	return w.session.Clone(), nil
}

func (w *worker) next(hostID uuid.UUID, fromCursor int) (models.Session, error) {
	if hostID != w.session.HostID {
		return models.Session{}, ErrNotHost
	}
	if w.session.Status != models.SessionStatusActive {
		return models.Session{}, ErrNotActive
	}
	// A double-clicked next arrives with yesterday's cursor; it is a
	// duplicate, not a second advance.
	if fromCursor != w.session.Cursor {
		return models.Session{}, ErrDuplicateTransition
	}

	w.closeCurrentItem()
	w.session.Cursor++

	if w.session.Cursor > len(w.session.Order)-1 {
		// Normal completion path, not an error.
		w.finish()
		return w.session.Clone(), nil
	}

	w.activateCurrent()
	w.persistSession()
	return w.session.Clone(), nil
}

func (w *worker) end(hostID uuid.UUID) (models.Session, error) {
	if hostID != w.session.HostID {
		return models.Session{}, ErrNotHost
	}
	// Idempotent: a duplicate end from a slow network is a no-op.
	if w.session.Status == models.SessionStatusEnded {
		return w.session.Clone(), nil
	}

	if w.session.Status == models.SessionStatusActive {
		w.closeCurrentItem()
	}
	w.finish()
	return w.session.Clone(), nil
}

// finish moves the session to its terminal state and tears the room down.
// The terminal event is published before the room closes so every subscriber
// still drains it.
func (w *worker) finish() {
	now := w.coord.clock.Now()
	w.session.Status = models.SessionStatusEnded
	w.session.EndedAt = &now
	w.timer.Cancel()
	w.persistSession()

	w.publish(events.TypeSessionEnded, events.ScopePublic, events.SessionEndedPayload{
		SessionID: w.session.ID.String(),
		EndedAt:   now,
	})
	w.coord.hub.CloseRoom(w.session.ID)
	w.coord.registry.DropSession(w.session.ID)
	w.coord.releaseCode(w.session.JoinCode)

	log.Info().Str("session_id", w.session.ID.String()).Msg("session ended")
}

// closeCurrentItem freezes the active item: the answer snapshot is handed to
// the store and the countdown is discarded. Answers for the item are
// immutable from here on.
func (w *worker) closeCurrentItem() {
	ref, ok := w.session.CurrentRef()
	if !ok {
		return
	}
	w.timer.Cancel()
	if ref.Kind != models.ItemKindQuestion {
		return
	}
	if _, open := w.agg.ActiveItem(); !open {
		return
	}

	snap := w.agg.Close()
	sessionID := w.session.ID
	w.persist(func(ctx context.Context, st store.Store) error {
		return st.SaveAnswerSnapshot(ctx, sessionID, snap)
	})
}

// activateCurrent arms the new item under the cursor and announces it.
func (w *worker) activateCurrent() {
	ref, _ := w.session.CurrentRef()
	item := w.items[ref.ItemID]

	if item.Kind == models.ItemKindQuestion {
		w.agg.Open(item)
	}
	if item.Timed() {
		w.timer.Arm(item.ID, item.TimerSeconds)
	} else {
		w.timer.Cancel()
	}

	w.publish(events.TypeItemChanged, events.ScopePublic, events.ItemChangedPayload{
		Status:       w.session.Status,
		Cursor:       w.session.Cursor,
		Item:         item,
		TimerSeconds: item.TimerSeconds,
	})
}

func (w *worker) join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	if w.session.Status != models.SessionStatusLobby && w.session.Status != models.SessionStatusActive {
		return JoinResult{}, ErrSessionNotJoinable
	}

	p, resumed, err := w.coord.registry.Join(ctx, w.session.ID, req)
	if err != nil {
		return JoinResult{}, err
	}

	w.persist(func(ctx context.Context, st store.Store) error {
		return st.SaveParticipant(ctx, p)
	})
	w.publish(events.TypeParticipantJoined, events.ScopePublic, events.ParticipantJoinedPayload{
		Participant: p,
		Resumed:     resumed,
	})

	return JoinResult{Participant: p, Session: w.session.Clone()}, nil
}

func (w *worker) submit(c submitCmd) error {
	if _, ok := w.coord.registry.Get(w.session.ID, c.participantID); !ok {
		return ErrSessionNotJoinable
	}
	if w.session.Status != models.SessionStatusActive {
		return ErrCollectionClosed
	}
	// Expiry closes the window even while the item stays on screen.
	if w.timer.Expired(c.itemID) {
		return ErrCollectionClosed
	}

	res, err := w.agg.Submit(c.participantID, c.itemID, c.optionID, c.freeText, c.timeTakenMs)
	if err != nil {
		return err
	}

	snap := w.agg.Snapshot()
	w.publish(events.TypeAnswerReceived, events.ScopeHost, events.AnswerReceivedPayload{
		ParticipantID: c.participantID.String(),
		ItemID:        c.itemID.String(),
		Answered:      w.agg.AnswerCount(),
		Resubmission:  !res.First,
	})
	w.publish(events.TypeAggregateUpdate, events.ScopeHost, events.AggregateUpdatePayload{
		ItemID:    c.itemID.String(),
		Key:       res.Key,
		Count:     res.Count,
		PrevKey:   res.PrevKey,
		PrevCount: res.PrevCount,
		Counts:    snap.Counts,
	})
	return nil
}

// subscribe attaches a party to the session's event feed and hands it a full
// state snapshot first, instead of replaying missed deltas.
func (w *worker) subscribe(partyID uuid.UUID) (*broadcast.Subscriber, error) {
	if w.session.Status == models.SessionStatusEnded {
		return nil, ErrSessionNotJoinable
	}
	host := partyID == w.session.HostID
	if !host {
		p, ok := w.coord.registry.Get(w.session.ID, partyID)
		if !ok {
			return nil, ErrSessionNotJoinable
		}
		if !p.Connected() {
			if _, err := w.coord.registry.MarkReconnected(partyID); err == nil {
				w.publish(events.TypeParticipantReconnected, events.ScopePublic, events.ParticipantLivenessPayload{
					ParticipantID: partyID.String(),
					At:            w.coord.clock.Now(),
				})
			}
		}
	}

	sub := w.coord.hub.Subscribe(w.session.ID, partyID, host)
	env, err := events.New(w.session.ID, events.TypeStateSnapshot, events.ScopePublic, w.coord.clock.Now(), w.stateSnapshot(partyID))
	if err != nil {
		log.Error().Err(err).Str("session_id", w.session.ID.String()).Msg("failed to build state snapshot")
		return sub, nil
	}
	w.coord.hub.SendTo(sub, env)
	return sub, nil
}

func (w *worker) disconnect(participantID uuid.UUID) {
	if _, err := w.coord.registry.MarkDisconnected(participantID); err != nil {
		return
	}
	w.publish(events.TypeParticipantDisconnected, events.ScopePublic, events.ParticipantLivenessPayload{
		ParticipantID: participantID.String(),
		At:            w.coord.clock.Now(),
	})
}

// stateSnapshot is what a (re)connecting party renders from: current item,
// remaining time, whether it already answered, and for the host the live
// counts.
func (w *worker) stateSnapshot(partyID uuid.UUID) events.StateSnapshotPayload {
	snap := events.StateSnapshotPayload{
		Session: w.session.Clone(),
	}
	if ref, ok := w.session.CurrentRef(); ok {
		item := w.items[ref.ItemID]
		snap.Item = &item
		snap.RemainingSeconds = w.timer.RemainingSeconds()
		snap.Expired = w.timer.Expired(item.ID)
		snap.AlreadyAnswered = w.agg.HasAnswered(partyID)
		if partyID == w.session.HostID {
			if _, open := w.agg.ActiveItem(); open {
				snap.Counts = w.agg.Snapshot().Counts
			}
		}
	}
	return snap
}

func (w *worker) handleTimerFire() {
	ev := w.timer.Fire()
	if ev.Expired {
		w.publish(events.TypeTimerExpired, events.ScopePublic, events.TimerExpiredPayload{
			ItemID: ev.ItemID.String(),
		})
		return
	}
	w.publish(events.TypeTimerTick, events.ScopePublic, events.TimerTickPayload{
		ItemID:           ev.ItemID.String(),
		RemainingSeconds: ev.RemainingSeconds,
	})
}

func (w *worker) publish(typ events.Type, scope events.Scope, payload any) {
	env, err := events.New(w.session.ID, typ, scope, w.coord.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("session_id", w.session.ID.String()).Str("type", string(typ)).Msg("failed to build event")
		return
	}
	w.coord.hub.Publish(w.session.ID, env)
}

func (w *worker) persistSession() {
	session := w.session.Clone()
	w.persist(func(ctx context.Context, st store.Store) error {
		return st.SaveSession(ctx, session)
	})
}

// persist queues a store write. The queue is buffered; if the store falls
// hopelessly behind we log and drop rather than stall the session.
func (w *worker) persist(job persistJob) {
	select {
	case w.persistCh <- job:
	default:
		log.Error().Str("session_id", w.session.ID.String()).Msg("persist queue full, dropping write")
	}
}

// persistLoop runs the queued store writes. It exits on shutdown, or once a
// retired worker's queue is closed and fully drained.
func (w *worker) persistLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.persistCh:
			if !ok {
				return
			}
			if err := job(ctx, w.coord.store); err != nil {
				log.Error().Err(err).Str("session_id", w.session.ID.String()).Msg("persist failed")
			}
		}
	}
}
