package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a quiz session has not been started.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrInvalidTransition is returned for operations outside their valid state.
	ErrInvalidTransition = errors.New("operation not valid in current session state")
	// ErrQuestionNotFound indicates a selection names a question outside the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrIdentityMissing is returned when an operation requires a guest
	// identity and none could be established.
	ErrIdentityMissing = errors.New("guest identity missing")
	// ErrNotOwner is returned when a guest tries to edit or delete a thought
	// owned by a different identity.
	ErrNotOwner = errors.New("thought not owned by this guest")
	// ErrThoughtNotFound indicates the thought is not held on the board.
	ErrThoughtNotFound = errors.New("thought not found")
	// ErrNoPendingDelete is returned when a delete is confirmed without a
	// prior request-to-delete for the same thought.
	ErrNoPendingDelete = errors.New("no delete pending for this thought")
	// ErrInvalidThought wraps length-bound violations on thought submissions.
	ErrInvalidThought = errors.New("invalid thought")
)
