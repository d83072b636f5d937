package live

import "errors"

// Named error kinds for the session protocol. Validation errors are surfaced
// to the caller for correction; ordering errors (ErrDuplicateTransition,
// ErrCollectionClosed) mean the caller should refetch current state.
var (
	// ErrInvalidOrder is returned when a session is created with an empty
	// order or one referencing unknown items.
	ErrInvalidOrder = errors.New("invalid item order")

	// ErrSessionNotJoinable is returned when joining an ended session, an
	// unknown join code, or reusing a participant ID from another session.
	ErrSessionNotJoinable = errors.New("session not joinable")

	// ErrAlreadyStarted is returned by start() on a session not in lobby.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotActive is returned by next() on a session that is not active.
	ErrNotActive = errors.New("session not active")

	// ErrCollectionClosed is returned for answers to anything but the
	// currently open item.
	ErrCollectionClosed = errors.New("answer collection closed")

	// ErrInvalidGuestProfile is returned when a guest joins without a
	// display name or a syntactically valid contact address.
	ErrInvalidGuestProfile = errors.New("invalid guest profile")

	// ErrDuplicateTransition is returned when a transition observes an
	// already-advanced cursor, e.g. a double-clicked next.
	ErrDuplicateTransition = errors.New("duplicate transition")

	// ErrNoParticipants is returned by start() when nobody has joined yet.
	ErrNoParticipants = errors.New("no connected participants")

	// ErrUnknownSession is returned for commands addressing a session this
	// coordinator does not run.
	ErrUnknownSession = errors.New("unknown session")

	// ErrNotHost is returned when a host command carries the wrong host ID.
	ErrNotHost = errors.New("not the session host")

	// ErrUnknownOption is returned for answers naming an option the active
	// question does not declare.
	ErrUnknownOption = errors.New("unknown option")
)
