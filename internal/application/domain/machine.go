package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition is the sentinel matched by errors.Is for every
// rejected transition.
var ErrInvalidTransition = errors.New("invalid_transition")

// ErrReasonRequired is returned when reject/withdraw is attempted without a
// reason string.
var ErrReasonRequired = errors.New("reason_required")

// TransitionError carries the attempted edge for diagnostics while matching
// ErrInvalidTransition through errors.Is.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: %s from %s", e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Guards holds the externally-evaluated conditions a transition may depend
// on. The machine itself stays pure: callers compute guard inputs from the
// ledger, stage policy, and clock.
type Guards struct {
	Stage1Met     bool
	MoveInReached bool
	Reason        string
}

type edge struct {
	to    State
	guard func(Guards) error
}

var transitions = map[State]map[Event]edge{
	StateDraft: {
		EventSubmit: {to: StateSubmitted},
	},
	StateSubmitted: {
		EventScreen: {to: StateAdminScreened},
	},
	StateAdminScreened: {
		EventApprove: {to: StateApprovedHigh},
	},
	StateApprovedHigh: {
		EventSetTerms: {to: StateTermsSet},
	},
	StateTermsSet: {
		EventAdvance: {to: StateMinDue, guard: requireStage1},
	},
	StateMinDue: {
		EventAdvance: {to: StateMinPaid, guard: requireStage1},
	},
	StateMinPaid: {
		EventCountersign: {to: StateCountersigned, guard: requireStage1},
	},
	StateCountersigned: {
		EventOccupy: {to: StateOccupied, guard: requireMoveIn},
	},
	StateOccupied: {},
}

func requireStage1(g Guards) error {
	if !g.Stage1Met {
		return ErrInvalidTransition
	}
	return nil
}

func requireMoveIn(g Guards) error {
	if !g.MoveInReached {
		return ErrInvalidTransition
	}
	return nil
}

// Next applies one state-machine edge and returns the resulting state.
// Reject and withdraw are reachable from every non-terminal state and
// require a reason; all other edges come from the transition table above.
func Next(current State, event Event, g Guards) (State, error) {
	if current.Terminal() {
		return current, &TransitionError{From: current, Event: event}
	}

	switch event {
	case EventReject, EventWithdraw:
		if strings.TrimSpace(g.Reason) == "" {
			return current, ErrReasonRequired
		}
		if event == EventReject {
			return StateRejected, nil
		}
		return StateWithdrawn, nil
	}

	edges, ok := transitions[current]
	if !ok {
		return current, &TransitionError{From: current, Event: event}
	}
	e, ok := edges[event]
	if !ok {
		return current, &TransitionError{From: current, Event: event}
	}
	if e.guard != nil {
		if err := e.guard(g); err != nil {
			return current, &TransitionError{From: current, Event: event}
		}
	}
	return e.to, nil
}
