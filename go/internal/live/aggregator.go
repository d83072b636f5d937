package live

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/quizlive/go/internal/models"
)

// SubmitResult describes how a submission moved the tallies, for the
// host-only aggregate-update event. PrevKey is empty on first submission and
// on same-option resubmission.
type SubmitResult struct {
	Answer    models.Answer
	Key       string
	Count     int
	PrevKey   string
	PrevCount int
	First     bool
}

// Aggregator collects answers for the currently active question and keeps
// per-option tallies. Resubmission replaces the participant's previous
// answer: the old option's count is decremented and the new one incremented,
// so sum(counts) always equals the number of live answers.
//
// All mutation goes through the owning session worker; the aggregator itself
// holds no lock.
type Aggregator struct {
	clock   clockwork.Clock
	item    models.Item
	open    bool
	answers map[uuid.UUID]*models.Answer
	counts  map[string]int
}

// NewAggregator creates an aggregator with no open item.
func NewAggregator(clock clockwork.Clock) *Aggregator {
	return &Aggregator{clock: clock}
}

// Open starts collecting answers for a question. Tallies for declared
// options are pre-seeded at zero so the host sees every bucket immediately.
func (a *Aggregator) Open(item models.Item) {
	a.item = item
	a.open = true
	a.answers = make(map[uuid.UUID]*models.Answer)
	a.counts = make(map[string]int, len(item.Options))
	for _, opt := range item.Options {
		a.counts[opt.ID.String()] = 0
	}
}

// ActiveItem returns the item currently collecting answers, if any.
func (a *Aggregator) ActiveItem() (uuid.UUID, bool) {
	if !a.open {
		return uuid.Nil, false
	}
	return a.item.ID, true
}

// HasAnswered reports whether the participant has a live answer for the open
// item.
func (a *Aggregator) HasAnswered(participantID uuid.UUID) bool {
	if !a.open {
		return false
	}
	_, ok := a.answers[participantID]
	return ok
}

// AnswerCount returns the number of participants with a live answer.
func (a *Aggregator) AnswerCount() int {
	return len(a.answers)
}

// Submit records or replaces the participant's answer for the item.
func (a *Aggregator) Submit(participantID, itemID, optionID uuid.UUID, freeText string, timeTakenMs int64) (SubmitResult, error) {
	if !a.open || itemID != a.item.ID {
		return SubmitResult{}, ErrCollectionClosed
	}
	if a.item.OpenEnded() {
		if freeText == "" {
			return SubmitResult{}, ErrUnknownOption
		}
		optionID = uuid.Nil
	} else {
		if !a.item.HasOption(optionID) {
			return SubmitResult{}, ErrUnknownOption
		}
		freeText = ""
	}

	now := a.clock.Now()
	next := models.Answer{
		ParticipantID: participantID,
		ItemID:        itemID,
		OptionID:      optionID,
		FreeText:      freeText,
		TimeTakenMs:   timeTakenMs,
		UpdatedAt:     now,
	}
	key := next.CountKey()

	prev, exists := a.answers[participantID]
	if !exists {
		next.SubmittedAt = now
		a.answers[participantID] = &next
		a.counts[key]++
		return SubmitResult{Answer: next, Key: key, Count: a.counts[key], First: true}, nil
	}

	prevKey := prev.CountKey()
	next.SubmittedAt = prev.SubmittedAt

	if prevKey == key {
		// Same bucket: refresh the answer, leave the tallies alone.
		prev.TimeTakenMs = timeTakenMs
		prev.UpdatedAt = now
		return SubmitResult{Answer: *prev, Key: key, Count: a.counts[key]}, nil
	}

	// Moved buckets: the decrement/increment pair keeps sum(counts) equal to
	// the number of live answers at every point.
	a.counts[prevKey]--
	if a.counts[prevKey] == 0 && a.item.OpenEnded() {
		delete(a.counts, prevKey)
	}
	a.counts[key]++
	*prev = next

	return SubmitResult{
		Answer:    next,
		Key:       key,
		Count:     a.counts[key],
		PrevKey:   prevKey,
		PrevCount: a.counts[prevKey],
	}, nil
}

// Snapshot returns a consistent copy of the open item's counts and answers.
func (a *Aggregator) Snapshot() models.AggregateSnapshot {
	snap := models.AggregateSnapshot{
		ItemID: a.item.ID,
		Counts: make(map[string]int, len(a.counts)),
	}
	for k, v := range a.counts {
		snap.Counts[k] = v
	}
	snap.Answers = make([]models.Answer, 0, len(a.answers))
	for _, ans := range a.answers {
		snap.Answers = append(snap.Answers, *ans)
	}
	return snap
}

// Close freezes the open item and returns its final snapshot. Nothing about
// a closed item is mutable again.
func (a *Aggregator) Close() models.AggregateSnapshot {
	snap := a.Snapshot()
	a.open = false
	a.answers = nil
	a.counts = nil
	return snap
}
