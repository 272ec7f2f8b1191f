// Package check resolves a roll against a difficulty class into one of four
// degrees of success.
package check

import (
	"fmt"
	"strings"
)

// Degree is a tier of success for a resolved check.
type Degree int

const (
	// DegreeUnspecified is the zero value and never the result of Resolve.
	DegreeUnspecified Degree = iota
	CriticalFailure
	Failure
	Success
	CriticalSuccess
)

// criticalMargin is the distance from the DC at which a result shifts one
// additional step.
const criticalMargin = 10

// DefaultDieSize is the size of the check die when a roll does not name one.
const DefaultDieSize = 20

// String returns the outcome key used by definitions.
func (d Degree) String() string {
	switch d {
	case CriticalFailure:
		return "criticalFailure"
	case Failure:
		return "failure"
	case Success:
		return "success"
	case CriticalSuccess:
		return "criticalSuccess"
	default:
		return "unspecified"
	}
}

// Valid reports whether d is one of the four degrees.
func (d Degree) Valid() bool {
	return d >= CriticalFailure && d <= CriticalSuccess
}

// IsSuccess reports whether d is a success tier.
func (d Degree) IsSuccess() bool {
	return d == Success || d == CriticalSuccess
}

// Upgrade moves one step towards critical success, clamping at the top.
func (d Degree) Upgrade() Degree {
	if d >= CriticalSuccess {
		return CriticalSuccess
	}
	return d + 1
}

// Downgrade moves one step towards critical failure, clamping at the bottom.
func (d Degree) Downgrade() Degree {
	if d <= CriticalFailure {
		return CriticalFailure
	}
	return d - 1
}

// Degrees lists the four degrees from best to worst.
func Degrees() []Degree {
	return []Degree{CriticalSuccess, Success, Failure, CriticalFailure}
}

// ParseDegree parses an outcome key. Matching ignores case, dashes and
// underscores so "critical_success" and "criticalSuccess" are equivalent.
func ParseDegree(value string) (Degree, error) {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(value)))
	switch normalized {
	case "criticalsuccess":
		return CriticalSuccess, nil
	case "success":
		return Success, nil
	case "failure":
		return Failure, nil
	case "criticalfailure":
		return CriticalFailure, nil
	default:
		return DegreeUnspecified, fmt.Errorf("unknown degree of success %q", value)
	}
}

// TieRule decides how a total exactly equal to the DC resolves.
type TieRule int

const (
	// TieFails resolves a tie as a failure.
	TieFails TieRule = iota
	// TieSucceeds resolves a tie as a success.
	TieSucceeds
)

// ParseTieRule parses "fail" or "succeed"; empty means TieFails.
func ParseTieRule(value string) (TieRule, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "fail", "fails", "failure":
		return TieFails, nil
	case "succeed", "succeeds", "success":
		return TieSucceeds, nil
	default:
		return TieFails, fmt.Errorf("unknown tie rule %q", value)
	}
}

// Roll is one resolved check roll.
type Roll struct {
	// Total is the natural die plus every bonus.
	Total int
	// Difficulty is the DC the total is compared against.
	Difficulty int
	// Natural is the face shown on the check die. Zero means unknown and
	// disables the natural-roll adjustment.
	Natural int
	// DieSize is the number of faces on the check die; zero means d20.
	DieSize int
}

// Options configures house rules for Resolve.
type Options struct {
	Tie TieRule
}

// Resolve maps a roll to a degree of success.
//
// A total above the DC succeeds and below it fails; a tie follows the tie
// rule. Beating the DC by 10 or more is a critical success and missing it by
// 10 or more is a critical failure. A natural maximum then upgrades a success
// to a critical success and leaves every other degree alone; a natural minimum
// downgrades any degree one step.
func Resolve(roll Roll, opts Options) Degree {
	margin := Margin(roll.Total, roll.Difficulty)

	var degree Degree
	switch {
	case margin >= criticalMargin:
		degree = CriticalSuccess
	case margin <= -criticalMargin:
		degree = CriticalFailure
	case margin > 0:
		degree = Success
	case margin < 0:
		degree = Failure
	case opts.Tie == TieSucceeds:
		degree = Success
	default:
		degree = Failure
	}

	dieSize := roll.DieSize
	if dieSize <= 0 {
		dieSize = DefaultDieSize
	}
	switch {
	case roll.Natural <= 0:
	case roll.Natural >= dieSize:
		if degree == Success {
			degree = CriticalSuccess
		}
	case roll.Natural == 1:
		degree = degree.Downgrade()
	}
	return degree
}

// MeetsDifficulty returns true if total >= difficulty.
func MeetsDifficulty(total, difficulty int) bool {
	return total >= difficulty
}

// Margin calculates the margin of success or failure.
// Positive values indicate success, negative indicate failure.
func Margin(total, difficulty int) int {
	return total - difficulty
}
