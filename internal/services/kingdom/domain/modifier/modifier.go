// Package modifier resolves declared resource modifiers to concrete amounts
// and applies them to a ledger as one batch.
package modifier

import (
	"fmt"
	"slices"
	"strings"

	"github.com/louisbranch/kingdom/internal/core/check"
	"github.com/louisbranch/kingdom/internal/core/dice"
	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
)

// Kind tags a modifier variant.
type Kind string

const (
	// KindStatic applies a fixed signed amount.
	KindStatic Kind = "static"
	// KindDice applies the total of a dice formula rolled once per check.
	KindDice Kind = "dice"
	// KindChoice applies a fixed amount to a resource the player picks.
	KindChoice Kind = "choice"
)

// Modifier is a declared, signed change to one resource for one outcome.
type Modifier struct {
	Kind Kind `json:"kind" yaml:"kind"`
	// Resource is the target of static and dice modifiers.
	Resource string `json:"resource,omitempty" yaml:"resource"`
	// Resources lists the candidates of a choice modifier.
	Resources []string `json:"resources,omitempty" yaml:"resources"`
	Amount    int      `json:"amount,omitempty" yaml:"amount"`
	Formula   string   `json:"formula,omitempty" yaml:"formula"`
	// Key overrides the derived cache and choice key.
	Key string `json:"key,omitempty" yaml:"key"`
}

// Static returns a fixed modifier.
func Static(resourceName string, amount int) Modifier {
	return Modifier{Kind: KindStatic, Resource: resourceName, Amount: amount}
}

// Dice returns a dice modifier such as Dice("food", "-1d4").
func Dice(resourceName, formula string) Modifier {
	return Modifier{Kind: KindDice, Resource: resourceName, Formula: formula}
}

// Choice returns a modifier whose target the player picks among candidates.
func Choice(amount int, candidates ...string) Modifier {
	return Modifier{Kind: KindChoice, Amount: amount, Resources: candidates}
}

// KeyFor returns the stable key under which a modifier's dice roll or choice
// is stored in the check context.
func KeyFor(outcome check.Degree, index int, mod Modifier) string {
	if key := strings.TrimSpace(mod.Key); key != "" {
		return key
	}
	target := resource.Normalize(mod.Resource)
	if mod.Kind == KindChoice {
		target = string(KindChoice)
	}
	return fmt.Sprintf("%s/%d/%s", outcome, index, target)
}

// Validate rejects unknown kinds, unknown resources and malformed formulas.
func (m Modifier) Validate(policies resource.Policies) error {
	switch m.Kind {
	case KindStatic:
		return validateResource(policies, m.Resource)
	case KindDice:
		if err := validateResource(policies, m.Resource); err != nil {
			return err
		}
		_, err := m.formula()
		return err
	case KindChoice:
		if len(m.Resources) < 2 {
			return apperrors.New(apperrors.CodeContentDefinitionInvalid, "choice modifier needs at least two resources")
		}
		for _, name := range m.Resources {
			if err := validateResource(policies, name); err != nil {
				return err
			}
		}
		return nil
	default:
		return apperrors.WithMetadata(
			apperrors.CodeContentDefinitionInvalid,
			fmt.Sprintf("unknown modifier kind %q", m.Kind),
			map[string]string{"kind": string(m.Kind)},
		)
	}
}

// Candidates returns the normalized choice candidates.
func (m Modifier) Candidates() []string {
	out := make([]string, 0, len(m.Resources))
	for _, name := range m.Resources {
		out = append(out, resource.Normalize(name))
	}
	return out
}

func (m Modifier) formula() (dice.Formula, error) {
	formula, err := dice.Parse(m.Formula)
	if err != nil {
		return dice.Formula{}, apperrors.WrapWithMetadata(
			apperrors.CodeContentDiceFormulaInvalid,
			"malformed dice formula",
			map[string]string{"formula": m.Formula},
			err,
		)
	}
	return formula, nil
}

func validateResource(policies resource.Policies, name string) error {
	if !policies.Known(name) {
		return resource.Validate(policies, []resource.Delta{{Resource: name}})
	}
	return nil
}

// Resolved is one modifier with a concrete amount, or a pending choice.
type Resolved struct {
	Key      string
	Modifier Modifier
	Resource string
	Amount   int
	// Rolled holds the dice audit trail for dice modifiers.
	Rolled *dice.FormulaResult
	// Pending marks a choice the player has not made yet.
	Pending bool
	// Unrolled marks a dice modifier seen by a preview before its roll.
	Unrolled bool
}

// Pending returns the unresolved entries of resolved.
func Pending(resolved []Resolved) []Resolved {
	var out []Resolved
	for _, entry := range resolved {
		if entry.Pending {
			out = append(out, entry)
		}
	}
	return out
}

func containsResource(candidates []string, name string) bool {
	return slices.Contains(candidates, resource.Normalize(name))
}
