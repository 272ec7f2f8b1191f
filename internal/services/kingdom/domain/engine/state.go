package engine

import (
	"fmt"

	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
)

// State is a coordinator state.
type State string

const (
	StateCreated             State = "created"
	StateRequirementsChecked State = "requirementsChecked"
	StatePreRoll             State = "preRoll"
	StateRolled              State = "rolled"
	StatePreviewed           State = "previewed"
	StatePostRoll            State = "postRoll"
	StateModifiersApplied    State = "modifiersApplied"
	StatePostApply           State = "postApply"
	StateExecuted            State = "executed"
	StateCompleted           State = "completed"
	StateCancelled           State = "cancelled"
	StateFailed              State = "failed"
)

var transitions = map[State][]State{
	StateCreated:             {StateRequirementsChecked, StateFailed},
	StateRequirementsChecked: {StatePreRoll, StateCompleted, StateFailed},
	StatePreRoll:             {StateRolled, StateCancelled, StateFailed},
	StateRolled:              {StatePreviewed, StateFailed},
	// Previewed → Completed ends a dry run.
	StatePreviewed:        {StatePostRoll, StateCompleted, StateFailed},
	StatePostRoll:         {StateModifiersApplied, StateCancelled, StateFailed},
	StateModifiersApplied: {StatePostApply, StateFailed},
	StatePostApply:        {StateExecuted, StateFailed},
	StateExecuted:         {StateCompleted, StateFailed},
}

// CanTransition reports whether from → to is allowed.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Interactive reports whether s suspends on player input.
func (s State) Interactive() bool {
	return s == StatePreRoll || s == StatePostRoll || s == StatePostApply
}

// Mutated reports whether the ledger may have been written by the time the
// flow reached s.
func (s State) Mutated() bool {
	switch s {
	case StateModifiersApplied, StatePostApply, StateExecuted:
		return true
	}
	return false
}

func invalidTransition(from, to State) error {
	return apperrors.WithMetadata(
		apperrors.CodeCheckInvalidTransition,
		fmt.Sprintf("check cannot move from %s to %s", from, to),
		map[string]string{"from": string(from), "to": string(to)},
	)
}

// Verdict is the caller-facing classification of a finished check.
type Verdict string

const (
	VerdictOK                 Verdict = "ok"
	VerdictRequirementsNotMet Verdict = "requirementsNotMet"
	VerdictCancelled          Verdict = "cancelled"
	VerdictContentError       Verdict = "contentError"
	VerdictExecutionError     Verdict = "executionError"
	// VerdictInternalError marks an infrastructure failure such as storage I/O.
	VerdictInternalError Verdict = "internalError"
)
