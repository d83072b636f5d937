package live

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerEngine_TicksDownToExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewTimerEngine(clock)
	itemID := uuid.New()

	engine.Arm(itemID, 3)
	require.True(t, engine.Running())
	assert.Equal(t, 3, engine.RemainingSeconds())

	clock.Advance(1 * time.Second)
	<-engine.C()
	ev := engine.Fire()
	assert.False(t, ev.Expired)
	assert.Equal(t, itemID, ev.ItemID)
	assert.Equal(t, 2, ev.RemainingSeconds)

	clock.Advance(1 * time.Second)
	<-engine.C()
	ev = engine.Fire()
	assert.False(t, ev.Expired)
	assert.Equal(t, 1, ev.RemainingSeconds)

	clock.Advance(1 * time.Second)
	<-engine.C()
	ev = engine.Fire()
	assert.True(t, ev.Expired)
	assert.Equal(t, itemID, ev.ItemID)

	// Expiry fires exactly once: the engine goes idle afterwards.
	assert.False(t, engine.Running())
	assert.Nil(t, engine.C())
	assert.True(t, engine.Expired(itemID))
	assert.False(t, engine.Expired(uuid.New()))
}

func TestTimerEngine_LateTickSelfCorrects(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewTimerEngine(clock)
	itemID := uuid.New()

	engine.Arm(itemID, 10)

	// The first fire arrives late. Remaining time comes from wall clock
	// elapsed, not from counting fires, so nothing drifts.
	clock.Advance(2500 * time.Millisecond)
	<-engine.C()
	ev := engine.Fire()
	assert.False(t, ev.Expired)
	assert.Equal(t, 8, ev.RemainingSeconds)

	// Next fire lands back on the whole-second grid from armedAt.
	clock.Advance(500 * time.Millisecond)
	<-engine.C()
	ev = engine.Fire()
	assert.Equal(t, 7, ev.RemainingSeconds)
}

func TestTimerEngine_CancelStopsWithoutExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewTimerEngine(clock)
	itemID := uuid.New()

	engine.Arm(itemID, 5)
	engine.Cancel()

	assert.False(t, engine.Running())
	assert.False(t, engine.Expired(itemID))
	assert.Nil(t, engine.C())
	assert.Equal(t, 0, engine.RemainingSeconds())
}

func TestTimerEngine_RearmDiscardsPreviousCountdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewTimerEngine(clock)
	first := uuid.New()
	second := uuid.New()

	engine.Arm(first, 2)
	clock.Advance(2 * time.Second)
	<-engine.C()
	ev := engine.Fire()
	require.True(t, ev.Expired)
	require.True(t, engine.Expired(first))

	engine.Arm(second, 4)
	assert.False(t, engine.Expired(first))
	assert.False(t, engine.Expired(second))
	assert.Equal(t, 4, engine.RemainingSeconds())
}

func TestTimerEngine_IdleChannelIsInert(t *testing.T) {
	engine := NewTimerEngine(clockwork.NewFakeClock())

	select {
	case <-engine.C():
		t.Fatal("idle engine channel should never deliver")
	default:
	}
}
