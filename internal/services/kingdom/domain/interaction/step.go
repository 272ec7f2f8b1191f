// Package interaction runs the optional interactive sub-steps of a check.
//
// Steps belong to one of three phases and run in declaration order. Each is
// gated by a condition, suspends the check on a Prompter until an answer or a
// cancellation arrives, and writes its answer into the check context.
package interaction

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
)

// Phase places a step in the coordinator flow.
type Phase string

const (
	// PhasePreRoll runs before the die roll.
	PhasePreRoll Phase = "preRoll"
	// PhasePostRoll runs after the preview, before modifiers are applied.
	PhasePostRoll Phase = "postRoll"
	// PhasePostApply runs after modifiers are applied; cancelling it only
	// skips the optional follow-up.
	PhasePostApply Phase = "postApply"
)

// Phases returns the phases in flow order.
func Phases() []Phase {
	return []Phase{PhasePreRoll, PhasePostRoll, PhasePostApply}
}

// ParsePhase parses a phase name.
func ParsePhase(value string) (Phase, error) {
	for _, phase := range Phases() {
		if strings.EqualFold(strings.TrimSpace(value), string(phase)) {
			return phase, nil
		}
	}
	return "", fmt.Errorf("unknown interaction phase %q", value)
}

// Type selects the external surface a step suspends on.
type Type string

const (
	TypeMapSelection    Type = "map-selection"
	TypeEntitySelection Type = "entity-selection"
	TypeConfiguration   Type = "configuration"
	TypeDice            Type = "dice"
	TypeChoice          Type = "choice"
)

// Types returns every step type.
func Types() []Type {
	return []Type{TypeMapSelection, TypeEntitySelection, TypeConfiguration, TypeDice, TypeChoice}
}

// ParseType parses a step type.
func ParseType(value string) (Type, error) {
	for _, stepType := range Types() {
		if strings.EqualFold(strings.TrimSpace(value), string(stepType)) {
			return stepType, nil
		}
	}
	return "", fmt.Errorf("unknown interaction type %q", value)
}

// Condition gates a step against the current context.
type Condition func(cc *resolution.Context) (bool, error)

// CompleteFunc receives the answer after it is written to the context.
type CompleteFunc func(answer Answer, cc *resolution.Context) error

// Step describes one interactive sub-step.
type Step struct {
	ID    string
	Type  Type
	Phase Phase
	Label string
	// Options lists the choices offered by choice and selection steps.
	Options []string
	// Filter narrows entity-selection steps to one entity kind.
	Filter     string
	Condition  Condition
	OnComplete CompleteFunc
}

// Validate checks a step descriptor at definition load time.
func (s Step) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return apperrors.New(apperrors.CodeContentDefinitionInvalid, "interaction step id is required")
	}
	if _, err := ParseType(string(s.Type)); err != nil {
		return apperrors.Wrap(apperrors.CodeContentDefinitionInvalid, "step "+s.ID, err)
	}
	if _, err := ParsePhase(string(s.Phase)); err != nil {
		return apperrors.Wrap(apperrors.CodeContentDefinitionInvalid, "step "+s.ID, err)
	}
	if s.Type == TypeChoice && len(s.Options) == 0 {
		return apperrors.New(apperrors.CodeContentDefinitionInvalid, "choice step "+s.ID+" needs options")
	}
	return nil
}

// InPhase returns the steps of phase in declaration order.
func InPhase(steps []Step, phase Phase) []Step {
	var out []Step
	for _, step := range steps {
		if step.Phase == phase {
			out = append(out, step)
		}
	}
	return out
}
