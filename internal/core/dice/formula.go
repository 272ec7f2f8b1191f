package dice

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

const (
	maxDiceCount = 100
	maxDiceSides = 1000
)

// ErrInvalidFormula indicates a dice formula could not be parsed.
var ErrInvalidFormula = errors.New("invalid dice formula")

var formulaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Dice", Pattern: `[0-9]*[dD][0-9]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Op", Pattern: `[+-]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

// formulaAST is the participle grammar for "2d6", "1d4+1", "-1d6", "2d6 - 1d4".
type formulaAST struct {
	Terms []*termAST `parser:"@@+"`
}

type termAST struct {
	Sign  string `parser:"@Op?"`
	Dice  string `parser:"( @Dice"`
	Const string `parser:"| @Int )"`
}

var formulaParser = participle.MustBuild[formulaAST](
	participle.Lexer(formulaLexer),
	participle.Elide("Whitespace"),
)

// Term is one signed summand of a formula: either NdS or a constant.
type Term struct {
	Count    int
	Sides    int
	Constant int
	Negative bool
}

// IsDice reports whether the term rolls dice.
func (t Term) IsDice() bool {
	return t.Sides > 0
}

func (t Term) String() string {
	if t.IsDice() {
		return fmt.Sprintf("%dd%d", t.Count, t.Sides)
	}
	return strconv.Itoa(t.Constant)
}

// Formula is a parsed dice expression.
type Formula struct {
	terms []Term
}

// Parse parses a formula such as "2d6", "1d4+1" or "-1d6".
func Parse(formula string) (Formula, error) {
	raw := strings.TrimSpace(formula)
	if raw == "" {
		return Formula{}, fmt.Errorf("%w: formula is empty", ErrInvalidFormula)
	}
	ast, err := formulaParser.ParseString("", raw)
	if err != nil {
		return Formula{}, fmt.Errorf("%w %q: %v", ErrInvalidFormula, raw, err)
	}

	terms := make([]Term, 0, len(ast.Terms))
	for i, node := range ast.Terms {
		if i > 0 && node.Sign == "" {
			return Formula{}, fmt.Errorf("%w %q: terms must be joined by + or -", ErrInvalidFormula, raw)
		}
		term, err := node.term()
		if err != nil {
			return Formula{}, fmt.Errorf("%w %q: %v", ErrInvalidFormula, raw, err)
		}
		terms = append(terms, term)
	}
	return Formula{terms: terms}, nil
}

// MustParse is Parse for formulas known at compile time.
func MustParse(formula string) Formula {
	parsed, err := Parse(formula)
	if err != nil {
		panic(err)
	}
	return parsed
}

func (n *termAST) term() (Term, error) {
	term := Term{Negative: n.Sign == "-"}
	if n.Dice == "" {
		value, err := strconv.Atoi(n.Const)
		if err != nil {
			return Term{}, err
		}
		term.Constant = value
		return term, nil
	}

	countText, sidesText, _ := strings.Cut(strings.ToLower(n.Dice), "d")
	count := 1
	if countText != "" {
		value, err := strconv.Atoi(countText)
		if err != nil {
			return Term{}, err
		}
		count = value
	}
	sides, err := strconv.Atoi(sidesText)
	if err != nil {
		return Term{}, err
	}
	if count <= 0 || sides <= 0 {
		return Term{}, ErrInvalidDiceSpec
	}
	if count > maxDiceCount || sides > maxDiceSides {
		return Term{}, fmt.Errorf("dice %s exceeds %dd%d", n.Dice, maxDiceCount, maxDiceSides)
	}
	term.Count = count
	term.Sides = sides
	return term, nil
}

// Terms returns a copy of the formula terms.
func (f Formula) Terms() []Term {
	return append([]Term(nil), f.terms...)
}

// IsZero reports whether the formula is empty.
func (f Formula) IsZero() bool {
	return len(f.terms) == 0
}

// String returns the canonical form, e.g. "2d6-1".
func (f Formula) String() string {
	var b strings.Builder
	for i, term := range f.terms {
		switch {
		case term.Negative:
			b.WriteString("-")
		case i > 0:
			b.WriteString("+")
		}
		b.WriteString(term.String())
	}
	return b.String()
}

// Min returns the smallest possible total.
func (f Formula) Min() int {
	total := 0
	for _, term := range f.terms {
		low, high := term.bounds()
		if term.Negative {
			total -= high
		} else {
			total += low
		}
	}
	return total
}

// Max returns the largest possible total.
func (f Formula) Max() int {
	total := 0
	for _, term := range f.terms {
		low, high := term.bounds()
		if term.Negative {
			total -= low
		} else {
			total += high
		}
	}
	return total
}

func (t Term) bounds() (int, int) {
	if !t.IsDice() {
		return t.Constant, t.Constant
	}
	return t.Count, t.Count * t.Sides
}

// TermRoll is the rolled value of one term; Total carries the term's sign.
type TermRoll struct {
	Term    Term
	Results []int
	Total   int
}

// FormulaResult is the audit trail of one formula evaluation.
type FormulaResult struct {
	Formula string
	Terms   []TermRoll
	Total   int
}

// String renders the roll as "2d6+1 → [4 5] +1 = 10".
func (r FormulaResult) String() string {
	parts := make([]string, 0, len(r.Terms))
	for _, term := range r.Terms {
		if term.Term.IsDice() {
			parts = append(parts, fmt.Sprintf("%v", term.Results))
			continue
		}
		parts = append(parts, fmt.Sprintf("%+d", term.Total))
	}
	return fmt.Sprintf("%s → %s = %d", r.Formula, strings.Join(parts, " "), r.Total)
}

// Roll evaluates the formula once against rng.
func (f Formula) Roll(rng *rand.Rand) FormulaResult {
	result := FormulaResult{Formula: f.String(), Terms: make([]TermRoll, 0, len(f.terms))}
	for _, term := range f.terms {
		rolled := TermRoll{Term: term}
		if term.IsDice() {
			roll := rollSpec(rng, Spec{Sides: term.Sides, Count: term.Count})
			rolled.Results = roll.Results
			rolled.Total = roll.Total
		} else {
			rolled.Total = term.Constant
		}
		if term.Negative {
			rolled.Total = -rolled.Total
		}
		result.Total += rolled.Total
		result.Terms = append(result.Terms, rolled)
	}
	return result
}
