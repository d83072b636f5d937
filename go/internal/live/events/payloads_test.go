package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateUpdatePayload_EmptiedBucketStaysOnTheWire(t *testing.T) {
	// A resubmission that drained its old bucket reports the old count as
	// zero; the host must see that zero, not a missing field.
	env, err := New(uuid.New(), TypeAggregateUpdate, ScopeHost, time.Now(), AggregateUpdatePayload{
		ItemID:    uuid.New().String(),
		Key:       "option-b",
		Count:     1,
		PrevKey:   "option-a",
		PrevCount: 0,
		Counts:    map[string]int{"option-a": 0, "option-b": 1},
	})
	require.NoError(t, err)
	assert.Contains(t, string(env.Payload), `"prev_count":0`)
	assert.Contains(t, string(env.Payload), `"prev_key":"option-a"`)
}

func TestAggregateUpdatePayload_FirstSubmissionHasNoPrevKey(t *testing.T) {
	env, err := New(uuid.New(), TypeAggregateUpdate, ScopeHost, time.Now(), AggregateUpdatePayload{
		ItemID: uuid.New().String(),
		Key:    "option-a",
		Count:  1,
		Counts: map[string]int{"option-a": 1},
	})
	require.NoError(t, err)
	// PrevKey presence is what marks a bucket move.
	assert.NotContains(t, string(env.Payload), `"prev_key"`)
}
