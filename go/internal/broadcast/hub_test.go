package broadcast

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizlive/go/internal/live/events"
)

func mustEnvelope(t *testing.T, sessionID uuid.UUID, typ events.Type, scope events.Scope) events.Envelope {
	t.Helper()
	env, err := events.New(sessionID, typ, scope, time.Now(), map[string]string{"k": "v"})
	require.NoError(t, err)
	return env
}

func recv(t *testing.T, sub *Subscriber) events.Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.C():
		require.True(t, ok, "feed closed")
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return events.Envelope{}
	}
}

func TestHub_PublishReachesAllMembers(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()

	host := hub.Subscribe(sessionID, uuid.New(), true)
	participant := hub.Subscribe(sessionID, uuid.New(), false)

	env := mustEnvelope(t, sessionID, events.TypeItemChanged, events.ScopePublic)
	hub.Publish(sessionID, env)

	assert.Equal(t, env.ID, recv(t, host).ID)
	assert.Equal(t, env.ID, recv(t, participant).ID)
}

func TestHub_HostScopeSkipsParticipants(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()

	host := hub.Subscribe(sessionID, uuid.New(), true)
	participant := hub.Subscribe(sessionID, uuid.New(), false)

	hostOnly := mustEnvelope(t, sessionID, events.TypeAggregateUpdate, events.ScopeHost)
	public := mustEnvelope(t, sessionID, events.TypeTimerTick, events.ScopePublic)
	hub.Publish(sessionID, hostOnly)
	hub.Publish(sessionID, public)

	assert.Equal(t, hostOnly.ID, recv(t, host).ID)
	assert.Equal(t, public.ID, recv(t, host).ID)
	// The participant only ever sees the public one.
	assert.Equal(t, public.ID, recv(t, participant).ID)
}

func TestHub_NoCrossSessionLeakage(t *testing.T) {
	hub := NewHub(nil)
	sessionA := uuid.New()
	sessionB := uuid.New()

	subA := hub.Subscribe(sessionA, uuid.New(), false)
	subB := hub.Subscribe(sessionB, uuid.New(), false)

	hub.Publish(sessionA, mustEnvelope(t, sessionA, events.TypeTimerTick, events.ScopePublic))

	recv(t, subA)
	select {
	case <-subB.C():
		t.Fatal("session B subscriber received session A event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DeliveryOrderIsFIFO(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	sub := hub.Subscribe(sessionID, uuid.New(), false)

	var published []string
	for i := 0; i < 10; i++ {
		env := mustEnvelope(t, sessionID, events.TypeTimerTick, events.ScopePublic)
		published = append(published, env.ID)
		hub.Publish(sessionID, env)
	}

	for _, want := range published {
		assert.Equal(t, want, recv(t, sub).ID)
	}
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	slow := hub.Subscribe(sessionID, uuid.New(), false)

	// Overrun the slow subscriber's buffer without draining it.
	for i := 0; i < defaultSubscriberBuffer+1; i++ {
		hub.Publish(sessionID, mustEnvelope(t, sessionID, events.TypeTimerTick, events.ScopePublic))
	}

	assert.Equal(t, 0, hub.Members(sessionID))

	// Dropping closes the feed once the buffer drains.
	drained := 0
	for range slow.C() {
		drained++
	}
	assert.Equal(t, defaultSubscriberBuffer, drained)

	// A fresh member keeps receiving; the drop cost nobody else anything.
	healthy := hub.Subscribe(sessionID, uuid.New(), false)
	hub.Publish(sessionID, mustEnvelope(t, sessionID, events.TypeTimerTick, events.ScopePublic))
	recv(t, healthy)
}

func TestHub_SendToTargetsOneSubscriber(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	target := hub.Subscribe(sessionID, uuid.New(), false)
	other := hub.Subscribe(sessionID, uuid.New(), false)

	env := mustEnvelope(t, sessionID, events.TypeStateSnapshot, events.ScopePublic)
	hub.SendTo(target, env)

	assert.Equal(t, env.ID, recv(t, target).ID)
	select {
	case <-other.C():
		t.Fatal("SendTo leaked to another subscriber")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_CloseRoomClosesEveryFeed(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	a := hub.Subscribe(sessionID, uuid.New(), false)
	b := hub.Subscribe(sessionID, uuid.New(), true)

	terminal := mustEnvelope(t, sessionID, events.TypeSessionEnded, events.ScopePublic)
	hub.Publish(sessionID, terminal)
	hub.CloseRoom(sessionID)

	// Buffered terminal event still drains before the close.
	assert.Equal(t, terminal.ID, recv(t, a).ID)
	_, open := <-a.C()
	assert.False(t, open)
	assert.Equal(t, terminal.ID, recv(t, b).ID)
	_, open = <-b.C()
	assert.False(t, open)

	assert.Equal(t, 0, hub.Members(sessionID))

	// SendTo after teardown is a no-op, not a panic.
	hub.SendTo(a, mustEnvelope(t, sessionID, events.TypeTimerTick, events.ScopePublic))
}

func TestSubscriber_CloseIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	sessionID := uuid.New()
	sub := hub.Subscribe(sessionID, uuid.New(), false)

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Members(sessionID))
}

type captureRelay struct {
	envs []events.Envelope
}

func (c *captureRelay) Publish(env events.Envelope) error {
	c.envs = append(c.envs, env)
	return nil
}

func TestHub_RelaySeesEveryEvent(t *testing.T) {
	relay := &captureRelay{}
	hub := NewHub(relay)
	sessionID := uuid.New()

	// Even with no subscribers, the relay tee still runs.
	hub.Publish(sessionID, mustEnvelope(t, sessionID, events.TypeItemChanged, events.ScopePublic))
	hub.Publish(sessionID, mustEnvelope(t, sessionID, events.TypeAggregateUpdate, events.ScopeHost))

	require.Len(t, relay.envs, 2)
	assert.Equal(t, events.TypeItemChanged, relay.envs[0].Type)
	assert.Equal(t, events.TypeAggregateUpdate, relay.envs[1].Type)
}
