package models

import "github.com/google/uuid"

// ItemKind defines the type of a session item.
type ItemKind string

const (
	ItemKindQuestion ItemKind = "QUESTION"
	ItemKindSlide    ItemKind = "SLIDE"
)

// Valid reports whether the item kind is a known value.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindQuestion, ItemKindSlide:
		return true
	}
	return false
}

// Option is one answerable choice of a question.
type Option struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// Item is an immutable content unit for the session's duration, fetched once
// from the content service. Questions carry options and an optional timer;
// slides carry a body and collect no answers.
type Item struct {
	ID           uuid.UUID `json:"id"`
	Kind         ItemKind  `json:"kind"`
	Prompt       string    `json:"prompt,omitempty"`
	Options      []Option  `json:"options,omitempty"`
	TimerSeconds int       `json:"timer_seconds,omitempty"`
	Body         string    `json:"body,omitempty"`
}

// Timed reports whether the item runs under a countdown.
func (i Item) Timed() bool {
	return i.Kind == ItemKindQuestion && i.TimerSeconds > 0
}

// OpenEnded reports whether the question accepts free-text answers.
func (i Item) OpenEnded() bool {
	return i.Kind == ItemKindQuestion && len(i.Options) == 0
}

// HasOption reports whether the question declares the given option.
func (i Item) HasOption(id uuid.UUID) bool {
	for _, opt := range i.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}
