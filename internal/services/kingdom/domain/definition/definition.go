// Package definition models immutable check definitions: player actions,
// random incidents and status-phase checks.
package definition

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/kingdom/internal/core/check"
	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/badge"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/interaction"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/modifier"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
)

// SchemaVersion is the definition schema this build understands.
const SchemaVersion = 1

// Category groups definitions by how they enter a turn.
type Category string

const (
	CategoryAction   Category = "action"
	CategoryIncident Category = "incident"
	CategoryStatus   Category = "status"
)

// ParseCategory parses a category name.
func ParseCategory(value string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(value))) {
	case CategoryAction:
		return CategoryAction, nil
	case CategoryIncident:
		return CategoryIncident, nil
	case CategoryStatus:
		return CategoryStatus, nil
	default:
		return "", fmt.Errorf("unknown category %q", value)
	}
}

// Requirement is the answer of a requirement predicate.
type Requirement struct {
	Met    bool
	Reason string
}

// Met is a satisfied requirement.
func Met() Requirement { return Requirement{Met: true} }

// Unmet returns a failed requirement with reason.
func Unmet(reason string) Requirement { return Requirement{Reason: reason} }

// RequirementFunc decides whether a definition is available.
type RequirementFunc func(kingdom realm.Kingdom) (Requirement, error)

// Outcome is the effect table of one degree of success.
type Outcome struct {
	Description string
	Modifiers   []modifier.Modifier
	Commands    []command.Spec
	Badges      []badge.Badge
}

// ExecuteResult is what custom execute logic reports.
type ExecuteResult struct {
	Success bool
	Message string
	Error   string
}

// ExecuteFunc is optional custom logic run after modifiers are applied. It
// may commit prepared commands held by the context.
type ExecuteFunc func(ctx context.Context, cc *resolution.Context) (ExecuteResult, error)

// Definition is one immutable check description.
type Definition struct {
	SchemaVersion int
	ID            string
	Name          string
	Category      Category
	Skills        []string
	Requirements  RequirementFunc
	Steps         []interaction.Step
	Outcomes      map[check.Degree]Outcome
	Execute       ExecuteFunc
}

// Outcome returns the effect table for degree. A missing critical success
// falls back to success and a missing critical failure to failure.
func (d *Definition) Outcome(degree check.Degree) (Outcome, bool) {
	if outcome, ok := d.Outcomes[degree]; ok {
		return outcome, true
	}
	switch degree {
	case check.CriticalSuccess:
		outcome, ok := d.Outcomes[check.Success]
		return outcome, ok
	case check.CriticalFailure:
		outcome, ok := d.Outcomes[check.Failure]
		return outcome, ok
	}
	return Outcome{}, false
}

// StepsFor returns the steps of phase in declaration order.
func (d *Definition) StepsFor(phase interaction.Phase) []interaction.Step {
	return interaction.InPhase(d.Steps, phase)
}

// HasSkill reports whether skill is one of the definition's options. A
// definition without skills accepts any.
func (d *Definition) HasSkill(skill string) bool {
	if len(d.Skills) == 0 {
		return true
	}
	for _, option := range d.Skills {
		if strings.EqualFold(option, strings.TrimSpace(skill)) {
			return true
		}
	}
	return false
}

// Validator supplies what validation needs to know about the environment.
type Validator struct {
	Modifiers *modifier.Engine
	Commands  *command.Registry
}

// Validate rejects malformed definitions: missing ids, unknown categories,
// step types or phases, unknown resources, malformed dice formulas and
// unregistered command types.
func (v Validator) Validate(def *Definition) error {
	if def == nil {
		return invalid("", "definition is required")
	}
	if def.SchemaVersion != 0 && def.SchemaVersion != SchemaVersion {
		return invalid(def.ID, fmt.Sprintf("schema version %d is not supported", def.SchemaVersion))
	}
	if strings.TrimSpace(def.ID) == "" {
		return invalid("", "definition id is required")
	}
	if _, err := ParseCategory(string(def.Category)); err != nil {
		return invalid(def.ID, err.Error())
	}
	seen := make(map[string]struct{}, len(def.Steps))
	for _, step := range def.Steps {
		if err := step.Validate(); err != nil {
			return wrapInvalid(def.ID, err)
		}
		if _, dup := seen[step.ID]; dup {
			return invalid(def.ID, fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = struct{}{}
	}
	if _, ok := def.Outcomes[check.Success]; !ok {
		return apperrors.WithMetadata(apperrors.CodeContentOutcomeMissing,
			fmt.Sprintf("definition %s has no success outcome", def.ID),
			map[string]string{"definition_id": def.ID})
	}
	if _, ok := def.Outcomes[check.Failure]; !ok {
		return apperrors.WithMetadata(apperrors.CodeContentOutcomeMissing,
			fmt.Sprintf("definition %s has no failure outcome", def.ID),
			map[string]string{"definition_id": def.ID})
	}
	engine := v.Modifiers
	if engine == nil {
		engine = modifier.NewEngine(nil)
	}
	for degree, outcome := range def.Outcomes {
		if !degree.Valid() {
			return invalid(def.ID, fmt.Sprintf("outcome key %d is not a degree of success", degree))
		}
		if err := engine.Validate(outcome.Modifiers); err != nil {
			return fmt.Errorf("definition %s outcome %s: %w", def.ID, degree, err)
		}
		for _, spec := range outcome.Commands {
			if err := v.Commands.Validate(spec); err != nil {
				return fmt.Errorf("definition %s outcome %s: %w", def.ID, degree, err)
			}
		}
	}
	return nil
}

func invalid(id, message string) error {
	return apperrors.WithMetadata(apperrors.CodeContentDefinitionInvalid, message, map[string]string{"definition_id": id})
}

func wrapInvalid(id string, err error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeContentDefinitionInvalid, "definition "+id, map[string]string{"definition_id": id}, err)
}
