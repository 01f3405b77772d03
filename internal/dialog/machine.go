package dialog

import (
	"fmt"

	"schedbot/internal/domain"
)

type key struct {
	state domain.ConversationState
	input domain.Input
}

type rule struct {
	next   domain.ConversationState
	action domain.RequiredAction
}

// Ready never appears as a next state: restarting goes through Ready and
// lands straight back on Initiated.
var rules = map[key]rule{
	{domain.StateInitiated, domain.IntentSuggestion}:          {domain.StateInitiated, domain.ActionAnswerDateTime},
	{domain.StateInitiated, domain.IntentAvailabilityRequest}: {domain.StatePolling, domain.ActionOpenPoll},
	{domain.StatePolling, domain.InputPasses}:                 {domain.StateAwaiting, domain.ActionRequestConfirmation},
	{domain.StatePolling, domain.InputFails}:                  {domain.StateInitiated, domain.ActionRestart},
	{domain.StateAwaiting, domain.InputConfirm}:               {domain.StateScheduled, domain.ActionFinalize},
	{domain.StateAwaiting, domain.InputDenied}:                {domain.StateInitiated, domain.ActionRestart},
}

// Transition is total over every (state, input) pair. Pairs without a rule
// keep the current state and report ActionUnimplemented with Handled false.
func Transition(state domain.ConversationState, input domain.Input) domain.TransitionResult {
	input = domain.NormalizeInput(string(input))
	from := state
	if from == domain.StateReady {
		from = domain.StateInitiated
	}

	res := domain.TransitionResult{State: state, Input: input}
	r, ok := rules[key{from, input}]
	if !ok {
		res.NextState = state
		res.Action = domain.ActionUnimplemented
		return res
	}
	res.NextState = r.next
	res.Action = r.action
	res.Handled = true
	return res
}

// Err returns domain.ErrUnhandledTransition for results without a rule.
func Err(res domain.TransitionResult) error {
	if res.Handled {
		return nil
	}
	return fmt.Errorf("%w: state=%s input=%s", domain.ErrUnhandledTransition, res.State, res.Input)
}
