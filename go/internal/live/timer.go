package live

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// TimerEvent is what the engine reports when its timer fires: either a
// once-per-second tick or the single expiry at zero.
type TimerEvent struct {
	ItemID           uuid.UUID
	Expired          bool
	RemainingSeconds int
}

// TimerEngine owns the authoritative countdown for the active item of one
// session. It is driven by the session worker: the worker selects on C() and
// calls Fire when the timer fires. Remaining time is always computed from
// armedAt plus elapsed wall time, never by decrementing a counter, so a late
// tick is self-correcting rather than cumulative.
//
// The engine is not safe for concurrent use; the session worker is its only
// caller.
type TimerEngine struct {
	clock    clockwork.Clock
	timer    clockwork.Timer
	itemID   uuid.UUID
	armedAt  time.Time
	duration time.Duration
	armed    bool
	expired  bool
}

// NewTimerEngine creates a timer engine on the given clock. Tests pass a
// clockwork fake clock.
func NewTimerEngine(clock clockwork.Clock) *TimerEngine {
	return &TimerEngine{clock: clock}
}

// Arm starts a countdown for the item. Any previous countdown is discarded.
func (t *TimerEngine) Arm(itemID uuid.UUID, durationSeconds int) {
	t.itemID = itemID
	t.armedAt = t.clock.Now()
	t.duration = time.Duration(durationSeconds) * time.Second
	t.expired = false
	t.armed = true
	if t.timer == nil {
		t.timer = t.clock.NewTimer(time.Second)
	} else {
		t.timer.Reset(time.Second)
	}
}

// Cancel stops ticking without emitting an expiry. Safe to call when idle.
func (t *TimerEngine) Cancel() {
	if t.armed {
		t.timer.Stop()
	}
	t.armed = false
	t.expired = false
	t.itemID = uuid.Nil
}

// C returns the channel the worker selects on. It is nil while the engine is
// idle, which makes the select arm inert.
func (t *TimerEngine) C() <-chan time.Time {
	if !t.armed {
		return nil
	}
	return t.timer.Chan()
}

// Fire consumes a timer firing and reports what happened. After the expiry
// event the engine stops ticking but remembers the expired item until the
// coordinator advances.
func (t *TimerEngine) Fire() TimerEvent {
	elapsed := t.clock.Since(t.armedAt)
	remaining := t.duration - elapsed
	if remaining <= 0 {
		t.armed = false
		t.expired = true
		return TimerEvent{ItemID: t.itemID, Expired: true}
	}

	// Schedule the next fire on the next whole-second boundary from armedAt.
	next := t.armedAt.Add((elapsed/time.Second + 1) * time.Second)
	t.timer.Reset(next.Sub(t.clock.Now()))

	return TimerEvent{
		ItemID:           t.itemID,
		RemainingSeconds: int((remaining + time.Second/2) / time.Second),
	}
}

// Expired reports whether the countdown for the item has run out.
func (t *TimerEngine) Expired(itemID uuid.UUID) bool {
	return t.expired && t.itemID == itemID
}

// RemainingSeconds returns the current remaining time, for state snapshots.
func (t *TimerEngine) RemainingSeconds() int {
	if !t.armed {
		return 0
	}
	remaining := t.duration - t.clock.Since(t.armedAt)
	if remaining < 0 {
		return 0
	}
	return int((remaining + time.Second/2) / time.Second)
}

// Running reports whether a countdown is currently armed.
func (t *TimerEngine) Running() bool {
	return t.armed
}
