package domain

import (
	"fmt"
	"strings"
)

const (
	EntityDate = "DATE"
	EntityTime = "TIME"
)

// Token is one parser token. Head is the index of the syntactic head inside
// the same Parse.Tokens slice; the root points at itself.
type Token struct {
	Text    string `json:"text"`
	Tag     string `json:"tag"`
	Dep     string `json:"dep"`
	Head    int    `json:"head"`
	IsPunct bool   `json:"is_punct"`
}

type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type Parse struct {
	Tokens   []Token  `json:"tokens"`
	Entities []Entity `json:"entities"`
}

type Features struct {
	HasDate          bool `json:"has_date"`
	HasTime          bool `json:"has_time"`
	IsWHQuestion     bool `json:"is_wh_question"`
	HasAuxiliaryVerb bool `json:"has_auxiliary_verb"`
	HasInversion     bool `json:"has_inversion"`
}

// IntentScore maps a category name to its mean cosine similarity.
type IntentScore map[string]float64

const (
	IntentGreeting            = "greeting"
	IntentSuggestion          = "suggestion"
	IntentAvailabilityRequest = "availability_request"
	IntentConfirmation        = "confirmation"
	IntentRescheduling        = "rescheduling"
)

type ConversationState string

const (
	StateInitiated ConversationState = "initiated"
	StatePolling   ConversationState = "polling"
	StateAwaiting  ConversationState = "awaiting"
	StateScheduled ConversationState = "scheduled"
	StateReady     ConversationState = "ready"
)

// ParseState accepts a state name in any case.
func ParseState(raw string) (ConversationState, error) {
	switch s := ConversationState(strings.ToLower(strings.TrimSpace(raw))); s {
	case StateInitiated, StatePolling, StateAwaiting, StateScheduled, StateReady:
		return s, nil
	default:
		return "", fmt.Errorf("unknown conversation state: %q", raw)
	}
}

// Input is whatever drives the dialog machine: a classified intent label or
// an external event such as a poll result.
type Input string

const (
	InputPasses  Input = "passes"
	InputFails   Input = "fails"
	InputConfirm Input = "confirm"
	InputDenied  Input = "denied"
)

// NormalizeInput lowercases and trims raw so it matches the Input constants.
func NormalizeInput(raw string) Input {
	return Input(strings.ToLower(strings.TrimSpace(raw)))
}

type RequiredAction string

const (
	ActionAnswerDateTime      RequiredAction = "qa_date_time"
	ActionOpenPoll            RequiredAction = "open_poll"
	ActionRequestConfirmation RequiredAction = "request_confirmation"
	ActionRestart             RequiredAction = "restart"
	ActionFinalize            RequiredAction = "finalize"
	ActionUnimplemented       RequiredAction = "unimplemented"
)

type Provenance string

const (
	ProvenanceNegative    Provenance = "negative"
	ProvenanceAffirmative Provenance = "affirmative"
	ProvenanceFallback    Provenance = "fallback"
	// ProvenanceFailed marks the generic reply used when a collaborator broke.
	ProvenanceFailed Provenance = "failed"
	// ProvenanceDialog marks fixed replies produced for state machine actions.
	ProvenanceDialog Provenance = "dialog"
)

type Poll struct {
	ID   string `json:"id,omitempty"`
	Date string `json:"date"`
	Time string `json:"time"`
}

// String renders the slot as date/time, the label published with a poll.
func (p Poll) String() string {
	return p.Date + "/" + p.Time
}

type ResponseDecision struct {
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
	Confidence float64    `json:"confidence"`
	Poll       *Poll      `json:"poll,omitempty"`
}

type QAAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

type DecideRequest struct {
	Text               string `json:"text"`
	State              string `json:"state"`
	NegativeContext    string `json:"negative_context,omitempty"`
	AffirmativeContext string `json:"affirmative_context,omitempty"`
}

type DecideResult struct {
	Text             string            `json:"text"`
	Question         string            `json:"question"`
	Features         Features          `json:"features"`
	Intent           string            `json:"intent"`
	IntentScores     IntentScore       `json:"intent_scores"`
	UncorrectedWords map[string]string `json:"uncorrected_words,omitempty"`
	Response         *ResponseDecision `json:"response,omitempty"`
	Action           RequiredAction    `json:"action"`
	Handled          bool              `json:"handled"`
	State            ConversationState `json:"state"`
	NextState        ConversationState `json:"next_state"`
}

type TransitionResult struct {
	State     ConversationState `json:"state"`
	Input     Input             `json:"input"`
	NextState ConversationState `json:"next_state"`
	Action    RequiredAction    `json:"action"`
	Handled   bool              `json:"handled"`
}
