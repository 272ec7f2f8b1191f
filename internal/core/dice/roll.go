// Package dice parses dice formulas and rolls them from seeded random sources.
//
// Every roll is driven by an explicit *rand.Rand so a caller holding the
// seed can reproduce any result.
package dice

import (
	"errors"
	"math/rand"
)

var (
	// ErrMissingDice indicates a roll request had no dice specified.
	ErrMissingDice = errors.New("at least one die must be provided")
	// ErrInvalidDiceSpec indicates a die specification has invalid fields.
	ErrInvalidDiceSpec = errors.New("dice must have positive sides and count")
)

// Spec describes a die to roll and how many times to roll it.
type Spec struct {
	Sides int
	Count int
}

// Request describes a seeded request to roll one or more dice.
type Request struct {
	Dice []Spec
	Seed int64
}

// Roll captures the results for a single dice spec.
type Roll struct {
	Sides   int
	Results []int
	Total   int
}

// Result captures the results from rolling multiple dice.
type Result struct {
	Rolls []Roll
	Total int
}

// RollDice rolls dice based on the provided request.
//
// # Determinism
//
// Given the same Seed and the same Dice slice (including order), RollDice
// always produces the same Result.
//
// # Ordering
//
// Specs are processed in slice order and Result.Rolls mirrors that order.
//
// Example:
//
//	result, err := RollDice(Request{
//	    Dice: []Spec{{Sides: 6, Count: 2}, {Sides: 8, Count: 1}},
//	    Seed: 1,
//	})
func RollDice(request Request) (Result, error) {
	return RollWithRng(rand.New(rand.NewSource(request.Seed)), request.Dice)
}

// RollWithRng rolls dice using a provided random source.
// Callers that roll several times within one check share one source so the
// sequence stays reproducible from the check seed.
func RollWithRng(rng *rand.Rand, specs []Spec) (Result, error) {
	if len(specs) == 0 {
		return Result{}, ErrMissingDice
	}
	for _, spec := range specs {
		if spec.Sides <= 0 || spec.Count <= 0 {
			return Result{}, ErrInvalidDiceSpec
		}
	}

	rolls := make([]Roll, 0, len(specs))
	total := 0
	for _, spec := range specs {
		roll := rollSpec(rng, spec)
		rolls = append(rolls, roll)
		total += roll.Total
	}
	return Result{Rolls: rolls, Total: total}, nil
}

func rollSpec(rng *rand.Rand, spec Spec) Roll {
	results := make([]int, spec.Count)
	total := 0
	for i := range results {
		value := rollDie(rng, spec.Sides)
		results[i] = value
		total += value
	}
	return Roll{Sides: spec.Sides, Results: results, Total: total}
}

// rollDie rolls a single die with the provided number of sides.
func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}
