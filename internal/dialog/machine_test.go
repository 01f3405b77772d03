package dialog

import (
	"errors"
	"testing"

	"schedbot/internal/domain"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		state      domain.ConversationState
		input      domain.Input
		wantNext   domain.ConversationState
		wantAction domain.RequiredAction
	}{
		{domain.StateInitiated, domain.IntentSuggestion, domain.StateInitiated, domain.ActionAnswerDateTime},
		{domain.StateInitiated, domain.IntentAvailabilityRequest, domain.StatePolling, domain.ActionOpenPoll},
		{domain.StatePolling, domain.InputPasses, domain.StateAwaiting, domain.ActionRequestConfirmation},
		{domain.StatePolling, domain.InputFails, domain.StateInitiated, domain.ActionRestart},
		{domain.StateAwaiting, domain.InputConfirm, domain.StateScheduled, domain.ActionFinalize},
		{domain.StateAwaiting, domain.InputDenied, domain.StateInitiated, domain.ActionRestart},
		// Ready behaves as Initiated.
		{domain.StateReady, domain.IntentSuggestion, domain.StateInitiated, domain.ActionAnswerDateTime},
		{domain.StateReady, domain.IntentAvailabilityRequest, domain.StatePolling, domain.ActionOpenPoll},
	}

	for _, tt := range tests {
		t.Run(string(tt.state)+"/"+string(tt.input), func(t *testing.T) {
			got := Transition(tt.state, tt.input)
			if got.NextState != tt.wantNext || got.Action != tt.wantAction || !got.Handled {
				t.Fatalf("got=(%s,%s,%v), want (%s,%s,true)", got.NextState, got.Action, got.Handled, tt.wantNext, tt.wantAction)
			}
			if err := Err(got); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTransitionNormalizesInput(t *testing.T) {
	got := Transition(domain.StatePolling, "  Fails ")
	if got.NextState != domain.StateInitiated || got.Action != domain.ActionRestart {
		t.Fatalf("got=(%s,%s), want (initiated,restart)", got.NextState, got.Action)
	}
}

func TestTransitionScheduledIsSticky(t *testing.T) {
	inputs := []domain.Input{
		domain.IntentGreeting, domain.IntentSuggestion, domain.IntentAvailabilityRequest,
		domain.IntentConfirmation, domain.IntentRescheduling,
		domain.InputPasses, domain.InputFails, domain.InputConfirm, domain.InputDenied, "",
	}
	for _, in := range inputs {
		got := Transition(domain.StateScheduled, in)
		if got.NextState != domain.StateScheduled || got.Action != domain.ActionUnimplemented || got.Handled {
			t.Fatalf("input %q: got=(%s,%s,%v)", in, got.NextState, got.Action, got.Handled)
		}
	}
}

func TestTransitionUnmatchedKeepsState(t *testing.T) {
	tests := []struct {
		state domain.ConversationState
		input domain.Input
	}{
		{domain.StateInitiated, domain.IntentGreeting},
		{domain.StateInitiated, domain.InputConfirm},
		{domain.StatePolling, domain.IntentSuggestion},
		{domain.StateAwaiting, domain.InputPasses},
		{domain.StateReady, domain.IntentRescheduling},
	}
	for _, tt := range tests {
		got := Transition(tt.state, tt.input)
		if got.NextState != tt.state || got.Action != domain.ActionUnimplemented || got.Handled {
			t.Fatalf("(%s,%s): got=(%s,%s,%v)", tt.state, tt.input, got.NextState, got.Action, got.Handled)
		}
		if err := Err(got); !errors.Is(err, domain.ErrUnhandledTransition) {
			t.Fatalf("err=%v, want ErrUnhandledTransition", err)
		}
	}
}
