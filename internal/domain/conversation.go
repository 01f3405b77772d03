package domain

import "time"

// Conversation is the persisted session of one user. Poll is the slot being
// voted on or awaiting confirmation; PollOpenedAt is zero once voting ended.
type Conversation struct {
	UserID       string            `json:"user_id"`
	State        ConversationState `json:"state"`
	Poll         *Poll             `json:"poll,omitempty"`
	PollOpenedAt time.Time         `json:"poll_opened_at,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// PollOpen reports whether the team is still voting on Poll.
func (c Conversation) PollOpen() bool {
	return c.State == StatePolling && c.Poll != nil && !c.PollOpenedAt.IsZero()
}

type DecisionRecord struct {
	UserID     string
	Text       string
	Question   string
	Intent     string
	Action     RequiredAction
	Provenance Provenance
	Confidence float64
	State      ConversationState
	NextState  ConversationState
	CreatedAt  time.Time
}

// ConversationEvent is what the event bus carries for every handled
// transition.
type ConversationEvent struct {
	UserID    string            `json:"user_id"`
	Action    RequiredAction    `json:"action"`
	State     ConversationState `json:"state"`
	NextState ConversationState `json:"next_state"`
	Reply     string            `json:"reply,omitempty"`
	Poll      *Poll             `json:"poll,omitempty"`
	At        time.Time         `json:"at"`
}
