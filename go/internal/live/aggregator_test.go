package live

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizlive/go/internal/models"
)

func choiceQuestion() models.Item {
	return models.Item{
		ID:   uuid.New(),
		Kind: models.ItemKindQuestion,
		Options: []models.Option{
			{ID: uuid.New(), Text: "Red"},
			{ID: uuid.New(), Text: "Blue"},
		},
	}
}

func TestAggregator_FirstSubmission(t *testing.T) {
	agg := NewAggregator(clockwork.NewFakeClock())
	item := choiceQuestion()
	agg.Open(item)

	// Declared options show up at zero before anyone answers.
	snap := agg.Snapshot()
	assert.Equal(t, 0, snap.Counts[item.Options[0].ID.String()])
	assert.Equal(t, 0, snap.Counts[item.Options[1].ID.String()])

	pid := uuid.New()
	res, err := agg.Submit(pid, item.ID, item.Options[0].ID, "", 1200)
	require.NoError(t, err)
	assert.True(t, res.First)
	assert.Equal(t, item.Options[0].ID.String(), res.Key)
	assert.Equal(t, 1, res.Count)
	assert.Empty(t, res.PrevKey)
	assert.True(t, agg.HasAnswered(pid))
	assert.Equal(t, 1, agg.AnswerCount())
}

func TestAggregator_ResubmissionMovesBuckets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	agg := NewAggregator(clock)
	item := choiceQuestion()
	agg.Open(item)

	pid := uuid.New()
	red := item.Options[0].ID
	blue := item.Options[1].ID

	_, err := agg.Submit(pid, item.ID, red, "", 1000)
	require.NoError(t, err)

	res, err := agg.Submit(pid, item.ID, blue, "", 4000)
	require.NoError(t, err)
	assert.False(t, res.First)
	assert.Equal(t, blue.String(), res.Key)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, red.String(), res.PrevKey)
	assert.Equal(t, 0, res.PrevCount)

	// One participant, one live answer, however many resubmissions.
	assert.Equal(t, 1, agg.AnswerCount())
	snap := agg.Snapshot()
	assert.Equal(t, 0, snap.Counts[red.String()])
	assert.Equal(t, 1, snap.Counts[blue.String()])
}

func TestAggregator_SameOptionResubmissionKeepsCounts(t *testing.T) {
	agg := NewAggregator(clockwork.NewFakeClock())
	item := choiceQuestion()
	agg.Open(item)

	pid := uuid.New()
	red := item.Options[0].ID

	first, err := agg.Submit(pid, item.ID, red, "", 1000)
	require.NoError(t, err)

	res, err := agg.Submit(pid, item.ID, red, "", 2500)
	require.NoError(t, err)
	assert.False(t, res.First)
	assert.Empty(t, res.PrevKey)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, int64(2500), res.Answer.TimeTakenMs)
	// SubmittedAt stays from the first submission; only UpdatedAt moves.
	assert.Equal(t, first.Answer.SubmittedAt, res.Answer.SubmittedAt)
}

func TestAggregator_UnknownOptionRejected(t *testing.T) {
	agg := NewAggregator(clockwork.NewFakeClock())
	item := choiceQuestion()
	agg.Open(item)

	_, err := agg.Submit(uuid.New(), item.ID, uuid.New(), "", 100)
	assert.ErrorIs(t, err, ErrUnknownOption)
	assert.Equal(t, 0, agg.AnswerCount())
}

func TestAggregator_ClosedOrWrongItemRejected(t *testing.T) {
	agg := NewAggregator(clockwork.NewFakeClock())
	item := choiceQuestion()
	agg.Open(item)

	_, err := agg.Submit(uuid.New(), uuid.New(), item.Options[0].ID, "", 100)
	assert.ErrorIs(t, err, ErrCollectionClosed)

	agg.Close()
	_, err = agg.Submit(uuid.New(), item.ID, item.Options[0].ID, "", 100)
	assert.ErrorIs(t, err, ErrCollectionClosed)
}

func TestAggregator_OpenEndedFreeText(t *testing.T) {
	agg := NewAggregator(clockwork.NewFakeClock())
	item := models.Item{ID: uuid.New(), Kind: models.ItemKindQuestion}
	agg.Open(item)

	pid := uuid.New()
	res, err := agg.Submit(pid, item.ID, uuid.Nil, "forty-two", 800)
	require.NoError(t, err)
	assert.Equal(t, "forty-two", res.Key)
	assert.Equal(t, 1, res.Count)

	// Moving to a different text drops the emptied bucket entirely.
	res, err = agg.Submit(pid, item.ID, uuid.Nil, "forty-three", 900)
	require.NoError(t, err)
	snap := agg.Snapshot()
	assert.Equal(t, map[string]int{"forty-three": 1}, snap.Counts)

	// Empty free text on an open-ended question is not an answer.
	_, err = agg.Submit(uuid.New(), item.ID, uuid.Nil, "", 100)
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestAggregator_CloseFreezesFinalSnapshot(t *testing.T) {
	agg := NewAggregator(clockwork.NewFakeClock())
	item := choiceQuestion()
	agg.Open(item)

	p1, p2 := uuid.New(), uuid.New()
	_, err := agg.Submit(p1, item.ID, item.Options[0].ID, "", 100)
	require.NoError(t, err)
	_, err = agg.Submit(p2, item.ID, item.Options[1].ID, "", 200)
	require.NoError(t, err)

	snap := agg.Close()
	assert.Equal(t, item.ID, snap.ItemID)
	assert.Len(t, snap.Answers, 2)
	assert.Equal(t, 1, snap.Counts[item.Options[0].ID.String()])
	assert.Equal(t, 1, snap.Counts[item.Options[1].ID.String()])

	_, open := agg.ActiveItem()
	assert.False(t, open)
	assert.False(t, agg.HasAnswered(p1))
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	agg := NewAggregator(clockwork.NewFakeClock())
	item := choiceQuestion()
	agg.Open(item)

	_, err := agg.Submit(uuid.New(), item.ID, item.Options[0].ID, "", 100)
	require.NoError(t, err)

	snap := agg.Snapshot()
	snap.Counts[item.Options[0].ID.String()] = 99

	fresh := agg.Snapshot()
	assert.Equal(t, 1, fresh.Counts[item.Options[0].ID.String()])
}
