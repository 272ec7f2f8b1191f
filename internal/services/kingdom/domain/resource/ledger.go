package resource

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
)

// ErrUnknownResource matches any error naming an undeclared resource.
var ErrUnknownResource = apperrors.New(apperrors.CodeContentResourceUnknown, "unknown resource")

// Delta is a signed change to one resource.
type Delta struct {
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}

// Shortfall is the unpaid part of a deduction that hit the resource floor.
type Shortfall struct {
	Resource string `json:"resource"`
	Unpaid   int    `json:"unpaid"`
	// Converted reports whether the unpaid amount was added to unrest.
	Converted bool `json:"converted"`
}

// Overflow is the part of a gain discarded by a resource ceiling.
type Overflow struct {
	Resource  string `json:"resource"`
	Discarded int    `json:"discarded"`
}

// BatchResult describes a planned or applied batch.
type BatchResult struct {
	// Applied holds the net change that actually landed per resource,
	// including unrest added by shortfall conversion.
	Applied    []Delta        `json:"applied"`
	Shortfalls []Shortfall    `json:"shortfalls,omitempty"`
	Overflows  []Overflow     `json:"overflows,omitempty"`
	Before     map[string]int `json:"-"`
	After      map[string]int `json:"-"`
}

// UnrestAdded returns the unrest produced by shortfall conversion.
func (r BatchResult) UnrestAdded() int {
	total := 0
	for _, shortfall := range r.Shortfalls {
		if shortfall.Converted {
			total += shortfall.Unpaid
		}
	}
	return total
}

// Ledger is the kingdom resource read/write surface.
type Ledger interface {
	// Get returns the current value of one resource.
	Get(ctx context.Context, name string) (int, error)
	// Snapshot returns every resource value.
	Snapshot(ctx context.Context) (map[string]int, error)
	// ApplyBatch applies every delta or none of them.
	ApplyBatch(ctx context.Context, deltas []Delta) (BatchResult, error)
}

// Validate rejects deltas naming undeclared resources.
func Validate(policies Policies, deltas []Delta) error {
	for _, delta := range deltas {
		name := Normalize(delta.Resource)
		if _, ok := policies[name]; !ok {
			return unknownResource(delta.Resource)
		}
	}
	return nil
}

func unknownResource(name string) error {
	return apperrors.WithMetadata(
		apperrors.CodeContentResourceUnknown,
		fmt.Sprintf("unknown resource %q", name),
		map[string]string{"resource": name},
	)
}

// Plan computes the result of applying deltas to current without mutating it.
//
// Deltas for the same resource are netted first so the floor and the unrest
// conversion are evaluated once per resource. Unrest is settled last so it
// includes every converted shortfall.
func Plan(policies Policies, current map[string]int, deltas []Delta) (BatchResult, error) {
	if err := Validate(policies, deltas); err != nil {
		return BatchResult{}, err
	}

	order := make([]string, 0, len(deltas))
	net := make(map[string]int, len(deltas))
	for _, delta := range deltas {
		name := Normalize(delta.Resource)
		if _, seen := net[name]; !seen {
			order = append(order, name)
		}
		net[name] += delta.Amount
	}

	before := make(map[string]int, len(current))
	after := make(map[string]int, len(current))
	for name, value := range current {
		before[name] = value
		after[name] = value
	}

	result := BatchResult{Before: before, After: after}
	converted := 0
	for _, name := range order {
		if name == Unrest {
			continue
		}
		shortfall, overflow := settle(policies[name], name, after, net[name])
		if shortfall != nil {
			shortfall.Converted = policies[name].ShortfallToUnrest
			if shortfall.Converted {
				converted += shortfall.Unpaid
			}
			result.Shortfalls = append(result.Shortfalls, *shortfall)
		}
		if overflow != nil {
			result.Overflows = append(result.Overflows, *overflow)
		}
	}

	unrestDelta, touched := net[Unrest]
	if touched || converted > 0 {
		policy, ok := policies[Unrest]
		if !ok {
			return BatchResult{}, unknownResource(Unrest)
		}
		if !touched {
			order = append(order, Unrest)
		}
		shortfall, overflow := settle(policy, Unrest, after, unrestDelta+converted)
		if shortfall != nil {
			result.Shortfalls = append(result.Shortfalls, *shortfall)
		}
		if overflow != nil {
			result.Overflows = append(result.Overflows, *overflow)
		}
	}

	for _, name := range order {
		if change := after[name] - before[name]; change != 0 {
			result.Applied = append(result.Applied, Delta{Resource: name, Amount: change})
		}
	}
	return result, nil
}

func settle(policy Policy, name string, values map[string]int, amount int) (*Shortfall, *Overflow) {
	next := values[name] + amount
	var shortfall *Shortfall
	var overflow *Overflow
	if next < policy.Floor {
		shortfall = &Shortfall{Resource: name, Unpaid: policy.Floor - next}
		next = policy.Floor
	}
	if policy.Ceiling > 0 && next > policy.Ceiling {
		overflow = &Overflow{Resource: name, Discarded: next - policy.Ceiling}
		next = policy.Ceiling
	}
	values[name] = next
	return shortfall, overflow
}
