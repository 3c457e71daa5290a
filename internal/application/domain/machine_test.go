package domain

import (
	"errors"
	"testing"
)

func TestHappyPathToOccupied(t *testing.T) {
	steps := []struct {
		event Event
		g     Guards
		want  State
	}{
		{EventSubmit, Guards{}, StateSubmitted},
		{EventScreen, Guards{}, StateAdminScreened},
		{EventApprove, Guards{}, StateApprovedHigh},
		{EventSetTerms, Guards{}, StateTermsSet},
		{EventAdvance, Guards{Stage1Met: true}, StateMinDue},
		{EventAdvance, Guards{Stage1Met: true}, StateMinPaid},
		{EventCountersign, Guards{Stage1Met: true}, StateCountersigned},
		{EventOccupy, Guards{MoveInReached: true}, StateOccupied},
	}

	state := StateDraft
	for _, step := range steps {
		next, err := Next(state, step.event, step.g)
		if err != nil {
			t.Fatalf("%s from %s: %v", step.event, state, err)
		}
		if next != step.want {
			t.Fatalf("%s from %s: got %s, want %s", step.event, state, next, step.want)
		}
		state = next
	}
}

func TestAdvanceBlockedUntilStage1Met(t *testing.T) {
	if _, err := Next(StateTermsSet, EventAdvance, Guards{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected guard rejection, got %v", err)
	}
	if _, err := Next(StateMinDue, EventAdvance, Guards{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected guard rejection, got %v", err)
	}
}

func TestCountersignBlockedWhenStage1Unmet(t *testing.T) {
	next, err := Next(StateMinPaid, EventCountersign, Guards{Stage1Met: false})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if next != StateMinPaid {
		t.Fatalf("state changed on rejected transition: %s", next)
	}
}

func TestOccupyBlockedBeforeMoveInDate(t *testing.T) {
	if _, err := Next(StateCountersigned, EventOccupy, Guards{MoveInReached: false}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestRejectAndWithdrawFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []State{
		StateDraft, StateSubmitted, StateAdminScreened, StateApprovedHigh,
		StateTermsSet, StateMinDue, StateMinPaid, StateCountersigned, StateOccupied,
	}
	for _, state := range nonTerminal {
		next, err := Next(state, EventReject, Guards{Reason: "failed screening"})
		if err != nil || next != StateRejected {
			t.Fatalf("reject from %s: state=%s err=%v", state, next, err)
		}
		next, err = Next(state, EventWithdraw, Guards{Reason: "applicant withdrew"})
		if err != nil || next != StateWithdrawn {
			t.Fatalf("withdraw from %s: state=%s err=%v", state, next, err)
		}
	}
}

func TestRejectRequiresReason(t *testing.T) {
	if _, err := Next(StateSubmitted, EventReject, Guards{}); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected reason required, got %v", err)
	}
	if _, err := Next(StateSubmitted, EventWithdraw, Guards{Reason: "  "}); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected reason required, got %v", err)
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	events := []Event{
		EventSubmit, EventScreen, EventApprove, EventSetTerms,
		EventAdvance, EventCountersign, EventOccupy, EventReject, EventWithdraw,
	}
	for _, terminal := range []State{StateRejected, StateWithdrawn} {
		for _, event := range events {
			next, err := Next(terminal, event, Guards{Stage1Met: true, MoveInReached: true, Reason: "x"})
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s on %s: expected invalid transition, got %v", event, terminal, err)
			}
			if next != terminal {
				t.Fatalf("%s on %s: state changed to %s", event, terminal, next)
			}
		}
	}
}

func TestOutOfOrderEventsRejected(t *testing.T) {
	cases := []struct {
		from  State
		event Event
	}{
		{StateDraft, EventApprove},
		{StateDraft, EventCountersign},
		{StateSubmitted, EventSubmit},
		{StateApprovedHigh, EventScreen},
		{StateTermsSet, EventCountersign},
		{StateOccupied, EventAdvance},
	}
	for _, tc := range cases {
		if _, err := Next(tc.from, tc.event, Guards{Stage1Met: true, MoveInReached: true}); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s from %s: expected invalid transition, got %v", tc.event, tc.from, err)
		}
	}
}

func TestTransitionErrorDiagnostics(t *testing.T) {
	_, err := Next(StateDraft, EventOccupy, Guards{})
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if te.From != StateDraft || te.Event != EventOccupy {
		t.Fatalf("unexpected diagnostics: %+v", te)
	}
}
