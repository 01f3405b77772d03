package domain

import "errors"

var (
	// ErrInvalidConfiguration is fatal: a category has no prototypes or the
	// embedding dimensions disagree.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrCollaboratorFailure wraps any error or timeout from an external model.
	ErrCollaboratorFailure = errors.New("collaborator failure")
	// ErrUnhandledTransition is informational; the machine keeps its state.
	ErrUnhandledTransition = errors.New("unhandled transition")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrPollNotFound         = errors.New("poll not found")
)
