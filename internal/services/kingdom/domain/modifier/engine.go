package modifier

import (
	"context"
	"fmt"

	"github.com/louisbranch/kingdom/internal/core/check"
	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
)

// ErrChoiceUnresolved indicates a batch still containing a pending choice.
var ErrChoiceUnresolved = apperrors.New(apperrors.CodeContentChoiceUnresolved, "resource choice is unresolved")

// Engine resolves and applies modifiers under one set of resource policies.
type Engine struct {
	policies resource.Policies
}

// NewEngine returns an engine; nil policies mean the defaults.
func NewEngine(policies resource.Policies) *Engine {
	if policies == nil {
		policies = resource.DefaultPolicies()
	}
	return &Engine{policies: policies}
}

// Policies returns the engine's resource policies.
func (e *Engine) Policies() resource.Policies {
	return e.policies
}

// Validate checks every modifier before any of them is used.
func (e *Engine) Validate(mods []Modifier) error {
	for i, mod := range mods {
		if err := mod.Validate(e.policies); err != nil {
			return fmt.Errorf("modifier %d: %w", i, err)
		}
	}
	return nil
}

// Resolve turns mods into concrete amounts. Dice are rolled once per context
// and cached under KeyFor; choices without an answer come back Pending.
func (e *Engine) Resolve(outcome check.Degree, mods []Modifier, cc *resolution.Context) ([]Resolved, error) {
	return e.resolve(outcome, mods, cc, true)
}

// Peek is Resolve without rolling: uncached dice come back Unrolled.
func (e *Engine) Peek(outcome check.Degree, mods []Modifier, cc *resolution.Context) ([]Resolved, error) {
	return e.resolve(outcome, mods, cc, false)
}

func (e *Engine) resolve(outcome check.Degree, mods []Modifier, cc *resolution.Context, roll bool) ([]Resolved, error) {
	if err := e.Validate(mods); err != nil {
		return nil, err
	}
	out := make([]Resolved, 0, len(mods))
	for i, mod := range mods {
		key := KeyFor(outcome, i, mod)
		entry := Resolved{Key: key, Modifier: mod, Resource: resource.Normalize(mod.Resource)}
		switch mod.Kind {
		case KindStatic:
			entry.Amount = mod.Amount
		case KindDice:
			formula, err := mod.formula()
			if err != nil {
				return nil, err
			}
			cached, ok := cc.Dice(key)
			if !ok && roll {
				cached, ok = cc.RollOnce(key, formula), true
			}
			if ok {
				entry.Amount = cached.Total
				entry.Rolled = &cached
			} else {
				entry.Unrolled = true
			}
		case KindChoice:
			entry.Amount = mod.Amount
			picked, ok := cc.Choice(key)
			if !ok || picked == "" {
				entry.Pending = true
				entry.Resource = ""
				break
			}
			if !containsResource(mod.Candidates(), picked) {
				return nil, apperrors.WithMetadata(
					apperrors.CodeContentChoiceUnresolved,
					fmt.Sprintf("choice %q is not one of %v", picked, mod.Candidates()),
					map[string]string{"key": key, "choice": picked},
				)
			}
			entry.Resource = resource.Normalize(picked)
		}
		out = append(out, entry)
	}
	return out, nil
}

// Deltas nets resolved amounts per resource in first-seen order.
func Deltas(resolved []Resolved) ([]resource.Delta, error) {
	order := make([]string, 0, len(resolved))
	net := make(map[string]int, len(resolved))
	for _, entry := range resolved {
		if entry.Pending {
			return nil, fmt.Errorf("%w: %s", ErrChoiceUnresolved, entry.Key)
		}
		if entry.Unrolled {
			return nil, fmt.Errorf("dice modifier %s has not been rolled", entry.Key)
		}
		if _, seen := net[entry.Resource]; !seen {
			order = append(order, entry.Resource)
		}
		net[entry.Resource] += entry.Amount
	}
	deltas := make([]resource.Delta, 0, len(order))
	for _, name := range order {
		deltas = append(deltas, resource.Delta{Resource: name, Amount: net[name]})
	}
	return deltas, nil
}

// Apply writes resolved amounts to ledger in a single ApplyBatch call. Every
// delta is validated first so a content error never reaches the ledger.
func (e *Engine) Apply(ctx context.Context, ledger resource.Ledger, resolved []Resolved) (resource.BatchResult, error) {
	deltas, err := Deltas(resolved)
	if err != nil {
		return resource.BatchResult{}, err
	}
	if err := resource.Validate(e.policies, deltas); err != nil {
		return resource.BatchResult{}, err
	}
	if len(deltas) == 0 {
		return resource.BatchResult{}, nil
	}
	if ledger == nil {
		return resource.BatchResult{}, fmt.Errorf("ledger is required")
	}
	result, err := ledger.ApplyBatch(ctx, deltas)
	if err != nil {
		return resource.BatchResult{}, fmt.Errorf("apply modifier batch: %w", err)
	}
	return result, nil
}
