// Package badge defines the small display units attached to outcome previews.
//
// Badges are always derived from a definition and a check context; nothing
// reads them back as authoritative state.
package badge

import (
	"strconv"
	"strings"

	"golang.org/x/text/message"
)

// Polarity tells a renderer how to color a badge.
type Polarity string

const (
	PolarityNeutral  Polarity = "neutral"
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// ValuePlaceholder is replaced with the badge value or dice formula.
const ValuePlaceholder = "{value}"

// Badge is one rendered outcome hint such as "+2 Gold" or "Lose 1d4 Food".
type Badge struct {
	Icon     string   `json:"icon,omitempty" yaml:"icon"`
	Template string   `json:"template" yaml:"template"`
	Value    *int     `json:"value,omitempty" yaml:"value"`
	Formula  string   `json:"formula,omitempty" yaml:"formula"`
	Polarity Polarity `json:"polarity,omitempty" yaml:"polarity"`
}

// Valued returns a badge carrying a concrete number.
func Valued(icon, template string, value int) Badge {
	return Badge{Icon: icon, Template: template, Value: &value, Polarity: PolarityFor(value)}
}

// Rolling returns a badge carrying an unrolled dice formula.
func Rolling(icon, template, formula string, polarity Polarity) Badge {
	return Badge{Icon: icon, Template: template, Formula: formula, Polarity: polarity}
}

// Text returns a badge without a value.
func Text(icon, template string, polarity Polarity) Badge {
	return Badge{Icon: icon, Template: template, Polarity: polarity}
}

// PolarityFor maps a signed amount to a polarity.
func PolarityFor(amount int) Polarity {
	switch {
	case amount > 0:
		return PolarityPositive
	case amount < 0:
		return PolarityNegative
	default:
		return PolarityNeutral
	}
}

// Render fills the template. A nil printer renders plain digits.
func (b Badge) Render(printer *message.Printer) string {
	value := b.Formula
	if b.Value != nil {
		if printer != nil {
			value = printer.Sprintf("%d", *b.Value)
		} else {
			value = strconv.Itoa(*b.Value)
		}
	}
	if !strings.Contains(b.Template, ValuePlaceholder) {
		return b.Template
	}
	return strings.ReplaceAll(b.Template, ValuePlaceholder, value)
}

