// Package preview derives the side-effect-free "what will happen" summary
// shown before a check's outcome is applied.
package preview

import (
	"fmt"
	"strings"

	"github.com/louisbranch/kingdom/internal/core/check"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/badge"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/definition"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/modifier"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Delta is one resolved resource change as shown to the player.
type Delta struct {
	Key      string `json:"key"`
	Resource string `json:"resource,omitempty"`
	Amount   int    `json:"amount"`
	// Formula is set for dice modifiers; Rolled reports whether Amount is final.
	Formula string `json:"formula,omitempty"`
	Rolled  bool   `json:"rolled,omitempty"`
	// Candidates lists the options of a pending choice.
	Candidates []string `json:"candidates,omitempty"`
	Pending    bool     `json:"pending,omitempty"`
}

// Command is a prepared command as shown to the player.
type Command struct {
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Badges      []badge.Badge `json:"badges,omitempty"`
}

// Preview is the player-facing payload for one outcome.
type Preview struct {
	DefinitionID string        `json:"definition_id"`
	Outcome      check.Degree  `json:"-"`
	OutcomeKey   string        `json:"outcome"`
	Description  string        `json:"description,omitempty"`
	Deltas       []Delta       `json:"deltas,omitempty"`
	Badges       []badge.Badge `json:"badges,omitempty"`
	Commands     []Command     `json:"commands,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	// Projected is what the ledger would land right now, shortfall
	// conversion and ceilings included. It is empty while a choice is
	// pending or a dice amount is unrolled.
	Projected  []resource.Delta     `json:"projected,omitempty"`
	Shortfalls []resource.Shortfall `json:"shortfalls,omitempty"`
	Overflows  []resource.Overflow  `json:"overflows,omitempty"`
}

// Build derives the preview of def for degree from what the context holds so
// far. It never rolls dice and never commits a prepared command: dice that
// were not rolled yet show their formula instead of an amount.
func Build(engine *modifier.Engine, def *definition.Definition, degree check.Degree, cc *resolution.Context) (Preview, error) {
	out := Preview{DefinitionID: def.ID, Outcome: degree, OutcomeKey: degree.String()}
	outcome, ok := def.Outcome(degree)
	if !ok {
		return out, nil
	}
	out.Description = outcome.Description

	resolved, err := engine.Peek(degree, outcome.Modifiers, cc)
	if err != nil {
		return Preview{}, err
	}
	for _, entry := range resolved {
		delta := Delta{Key: entry.Key, Resource: entry.Resource, Amount: entry.Amount}
		if entry.Modifier.Kind == modifier.KindDice {
			delta.Formula = entry.Modifier.Formula
			delta.Rolled = !entry.Unrolled
		}
		if entry.Pending {
			delta.Pending = true
			delta.Candidates = entry.Modifier.Candidates()
		}
		out.Deltas = append(out.Deltas, delta)
		out.Badges = append(out.Badges, modifierBadge(entry))
	}
	if settled(resolved) {
		if err := project(&out, engine.Policies(), cc.Kingdom().Resources, resolved); err != nil {
			return Preview{}, err
		}
	}
	out.Badges = append(out.Badges, outcome.Badges...)

	for _, entry := range cc.Prepared() {
		out.Commands = append(out.Commands, Command{
			Type:        string(entry.Prepared.Type),
			Description: entry.Prepared.Description,
			Badges:      append([]badge.Badge(nil), entry.Prepared.Badges...),
		})
		out.Badges = append(out.Badges, entry.Prepared.Badges...)
	}
	out.Warnings = cc.Warnings()
	return out, nil
}

var titleCaser = cases.Title(language.English)

func settled(resolved []modifier.Resolved) bool {
	for _, entry := range resolved {
		if entry.Pending || entry.Unrolled {
			return false
		}
	}
	return len(resolved) > 0
}

// project plans the batch against the current balances so the preview shows
// unpaid amounts, the unrest they become and gains lost to a ceiling.
func project(out *Preview, policies resource.Policies, balances map[string]int, resolved []modifier.Resolved) error {
	deltas, err := modifier.Deltas(resolved)
	if err != nil {
		return err
	}
	planned, err := resource.Plan(policies, balances, deltas)
	if err != nil {
		return err
	}
	out.Projected = planned.Applied
	out.Shortfalls = planned.Shortfalls
	out.Overflows = planned.Overflows
	for _, shortfall := range planned.Shortfalls {
		template := "{value} " + titleCaser.String(shortfall.Resource) + " unpaid"
		if shortfall.Converted {
			template += ", added to " + titleCaser.String(resource.Unrest)
		}
		out.Badges = append(out.Badges, negative("shortfall", template, shortfall.Unpaid))
	}
	for _, overflow := range planned.Overflows {
		template := "{value} " + titleCaser.String(overflow.Resource) + " lost over capacity"
		out.Badges = append(out.Badges, negative("overflow", template, overflow.Discarded))
	}
	return nil
}

func negative(icon, template string, value int) badge.Badge {
	b := badge.Valued(icon, template, value)
	b.Polarity = badge.PolarityNegative
	return b
}

func modifierBadge(entry modifier.Resolved) badge.Badge {
	switch {
	case entry.Pending:
		names := make([]string, 0, len(entry.Modifier.Resources))
		for _, name := range entry.Modifier.Candidates() {
			names = append(names, titleCaser.String(name))
		}
		return badge.Valued("choice", "{value} "+strings.Join(names, " or "), entry.Amount)
	case entry.Unrolled:
		formula := entry.Modifier.Formula
		polarity := badge.PolarityPositive
		if strings.HasPrefix(strings.TrimSpace(formula), "-") {
			polarity = badge.PolarityNegative
		}
		return badge.Rolling(entry.Resource, "{value} "+titleCaser.String(entry.Resource), formula, polarity)
	default:
		return badge.Valued(entry.Resource, signed(entry.Amount)+" "+titleCaser.String(entry.Resource), entry.Amount)
	}
}

func signed(amount int) string {
	if amount > 0 {
		return "+" + badge.ValuePlaceholder
	}
	return badge.ValuePlaceholder
}

// Lines renders the preview as text. A nil printer uses English formatting.
func (p Preview) Lines(printer *message.Printer) []string {
	if printer == nil {
		printer = message.NewPrinter(language.English)
	}
	lines := make([]string, 0, len(p.Badges)+len(p.Warnings)+1)
	if p.Description != "" {
		lines = append(lines, fmt.Sprintf("%s: %s", p.OutcomeKey, p.Description))
	}
	for _, b := range p.Badges {
		lines = append(lines, "• "+b.Render(printer))
	}
	for _, warning := range p.Warnings {
		lines = append(lines, "! "+warning)
	}
	return lines
}

// Pending reports whether any delta still waits for a player choice.
func (p Preview) Pending() bool {
	for _, delta := range p.Deltas {
		if delta.Pending {
			return true
		}
	}
	return false
}
