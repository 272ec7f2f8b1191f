package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/kingdom/internal/core/check"
	"github.com/louisbranch/kingdom/internal/services/kingdom/app"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/interaction"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ChecksListInput filters the catalog listing.
type ChecksListInput struct {
	Category string `json:"category,omitempty" jsonschema:"optional category filter: action, incident or status"`
}

// StepSummary describes one interaction step a check may prompt for.
type StepSummary struct {
	ID      string   `json:"id" jsonschema:"step id used as the answers key"`
	Type    string   `json:"type" jsonschema:"step type"`
	Phase   string   `json:"phase" jsonschema:"preRoll, postRoll or postApply"`
	Label   string   `json:"label,omitempty" jsonschema:"prompt shown to the player"`
	Options []string `json:"options,omitempty" jsonschema:"allowed answers for choice steps"`
	Filter  string   `json:"filter,omitempty" jsonschema:"entity kind for selection steps"`
}

// CheckSummary describes one catalog check.
type CheckSummary struct {
	ID       string        `json:"id" jsonschema:"check definition id"`
	Name     string        `json:"name" jsonschema:"display name"`
	Category string        `json:"category" jsonschema:"action, incident or status"`
	Skills   []string      `json:"skills,omitempty" jsonschema:"skills the check may be attempted with"`
	Steps    []StepSummary `json:"steps,omitempty" jsonschema:"interaction steps in flow order"`
}

// ChecksListResult lists catalog checks.
type ChecksListResult struct {
	Checks []CheckSummary `json:"checks" jsonschema:"checks sorted by id"`
}

// CheckInput names a check and how to roll it.
type CheckInput struct {
	KingdomID  string            `json:"kingdom_id" jsonschema:"kingdom to run the check against"`
	Check      string            `json:"check" jsonschema:"check definition id"`
	Skill      string            `json:"skill,omitempty" jsonschema:"skill used for the attempt"`
	Difficulty int               `json:"difficulty,omitempty" jsonschema:"DC; defaults to the kingdom control DC"`
	Modifier   int               `json:"modifier,omitempty" jsonschema:"bonus added to a rolled d20"`
	Roll       *int              `json:"roll,omitempty" jsonschema:"pre-rolled total; skips the d20"`
	Natural    *int              `json:"natural,omitempty" jsonschema:"natural die face of a pre-rolled total"`
	Seed       *int64            `json:"seed,omitempty" jsonschema:"pins the check's random source"`
	Answers    map[string]string `json:"answers,omitempty" jsonschema:"step id to answer; the value cancel cancels the step"`
	Metadata   map[string]any    `json:"metadata,omitempty" jsonschema:"extra values visible to step conditions"`
}

// RollResult is the resolved check roll.
type RollResult struct {
	Total      int `json:"total" jsonschema:"roll total"`
	Natural    int `json:"natural,omitempty" jsonschema:"natural die face"`
	Difficulty int `json:"difficulty" jsonschema:"DC the total was compared against"`
}

// DeltaResult is one applied resource change.
type DeltaResult struct {
	Resource string `json:"resource" jsonschema:"resource name"`
	Amount   int    `json:"amount" jsonschema:"signed change"`
}

// ShortfallResult is one unpaid deduction.
type ShortfallResult struct {
	Resource  string `json:"resource" jsonschema:"resource name"`
	Unpaid    int    `json:"unpaid" jsonschema:"amount the kingdom could not pay"`
	Converted bool   `json:"converted" jsonschema:"whether the unpaid amount became unrest"`
}

// CheckResult reports a finished or previewed check.
type CheckResult struct {
	CheckID      string            `json:"check_id" jsonschema:"check invocation id"`
	DefinitionID string            `json:"definition_id" jsonschema:"check definition id"`
	KingdomID    string            `json:"kingdom_id" jsonschema:"kingdom id"`
	DryRun       bool              `json:"dry_run,omitempty" jsonschema:"true for previews"`
	Verdict      string            `json:"verdict" jsonschema:"ok, requirementsNotMet, cancelled, contentError, executionError or internalError"`
	Success      bool              `json:"success" jsonschema:"whether the outcome is a success"`
	Cancelled    bool              `json:"cancelled,omitempty" jsonschema:"whether a step cancelled the check"`
	Message      string            `json:"message,omitempty" jsonschema:"player-facing message"`
	Error        string            `json:"error,omitempty" jsonschema:"error detail for failed checks"`
	State        string            `json:"state" jsonschema:"final coordinator state"`
	Outcome      string            `json:"outcome,omitempty" jsonschema:"degree of success"`
	Roll         *RollResult       `json:"roll,omitempty" jsonschema:"resolved roll"`
	Seed         int64             `json:"seed" jsonschema:"seed of the check's random source"`
	Preview      []string          `json:"preview,omitempty" jsonschema:"rendered outcome preview"`
	Applied      []DeltaResult     `json:"applied,omitempty" jsonschema:"resource changes written to the ledger"`
	Shortfalls   []ShortfallResult `json:"shortfalls,omitempty" jsonschema:"deductions that hit the resource floor"`
	Committed    []string          `json:"committed,omitempty" jsonschema:"descriptions of committed effects"`
	Warnings     []string          `json:"warnings,omitempty" jsonschema:"non-fatal warnings"`
	Outputs      map[string]any    `json:"outputs,omitempty" jsonschema:"values written by check logic"`
}

// ChecksListTool defines the MCP tool schema for listing the catalog.
func ChecksListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "kingdom_checks_list",
		Description: "Lists the kingdom checks in the catalog",
	}
}

// CheckPreviewTool defines the MCP tool schema for dry runs.
func CheckPreviewTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "kingdom_check_preview",
		Description: "Rolls a kingdom check and previews its outcome without changing the kingdom",
	}
}

// CheckRunTool defines the MCP tool schema for running a check.
func CheckRunTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "kingdom_check_run",
		Description: "Runs a kingdom check and applies its outcome",
	}
}

// ChecksListHandler lists catalog checks.
func ChecksListHandler(kingdoms Kingdoms) mcp.ToolHandlerFor[ChecksListInput, ChecksListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ChecksListInput) (*mcp.CallToolResult, ChecksListResult, error) {
		defs, err := kingdoms.Checks(input.Category)
		if err != nil {
			return nil, ChecksListResult{}, fmt.Errorf("list checks: %w", err)
		}
		result := ChecksListResult{Checks: make([]CheckSummary, 0, len(defs))}
		for _, def := range defs {
			summary := CheckSummary{
				ID:       def.ID,
				Name:     def.Name,
				Category: string(def.Category),
				Skills:   def.Skills,
			}
			for _, step := range def.Steps {
				summary.Steps = append(summary.Steps, StepSummary{
					ID:      step.ID,
					Type:    string(step.Type),
					Phase:   string(step.Phase),
					Label:   step.Label,
					Options: step.Options,
					Filter:  step.Filter,
				})
			}
			result.Checks = append(result.Checks, summary)
		}
		return nil, result, nil
	}
}

// CheckPreviewHandler previews a check.
func CheckPreviewHandler(kingdoms Kingdoms) mcp.ToolHandlerFor[CheckInput, CheckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CheckInput) (*mcp.CallToolResult, CheckResult, error) {
		req, err := checkRequest(input)
		if err != nil {
			return nil, CheckResult{}, err
		}
		result, err := kingdoms.Preview(ctx, req)
		if err != nil {
			return nil, CheckResult{}, fmt.Errorf("check preview failed: %w", err)
		}
		return nil, checkResult(result), nil
	}
}

// CheckRunHandler runs a check.
func CheckRunHandler(kingdoms Kingdoms) mcp.ToolHandlerFor[CheckInput, CheckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CheckInput) (*mcp.CallToolResult, CheckResult, error) {
		req, err := checkRequest(input)
		if err != nil {
			return nil, CheckResult{}, err
		}
		result, err := kingdoms.Run(ctx, req)
		if err != nil {
			return nil, CheckResult{}, fmt.Errorf("check run failed: %w", err)
		}
		return nil, checkResult(result), nil
	}
}

func checkRequest(input CheckInput) (app.Request, error) {
	kingdomID := strings.TrimSpace(input.KingdomID)
	if kingdomID == "" {
		return app.Request{}, fmt.Errorf("kingdom_id is required")
	}
	definitionID := strings.TrimSpace(input.Check)
	if definitionID == "" {
		return app.Request{}, fmt.Errorf("check is required")
	}
	if input.Natural != nil && input.Roll == nil {
		return app.Request{}, fmt.Errorf("natural requires roll")
	}

	keys := make([]string, 0, len(input.Answers))
	for key := range input.Answers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+input.Answers[key])
	}
	answers, err := interaction.ParseScripted(pairs)
	if err != nil {
		return app.Request{}, err
	}

	req := app.Request{
		KingdomID:    kingdomID,
		DefinitionID: definitionID,
		Skill:        input.Skill,
		Difficulty:   input.Difficulty,
		Bonus:        input.Modifier,
		Seed:         input.Seed,
		Metadata:     input.Metadata,
		Prompter:     answers,
	}
	if input.Roll != nil {
		roll := check.Roll{Total: *input.Roll, Difficulty: input.Difficulty}
		if input.Natural != nil {
			roll.Natural = *input.Natural
		}
		req.Roll = &roll
	}
	return req, nil
}

func checkResult(result engine.Result) CheckResult {
	out := CheckResult{
		CheckID:      result.CheckID,
		DefinitionID: result.DefinitionID,
		KingdomID:    result.KingdomID,
		DryRun:       result.DryRun,
		Verdict:      string(result.Verdict),
		Success:      result.Success,
		Cancelled:    result.Cancelled,
		Message:      result.Message,
		Error:        result.Error,
		State:        string(result.State),
		Outcome:      result.Outcome,
		Seed:         result.Seed,
		Committed:    result.Committed,
		Warnings:     result.Warnings,
		Outputs:      result.Data.Outputs,
	}
	if result.Roll.Difficulty != 0 {
		out.Roll = &RollResult{
			Total:      result.Roll.Total,
			Natural:    result.Roll.Natural,
			Difficulty: result.Roll.Difficulty,
		}
	}
	if result.Outcome != "" {
		out.Preview = result.Preview.Lines(message.NewPrinter(language.English))
	}
	for _, delta := range result.Batch.Applied {
		out.Applied = append(out.Applied, DeltaResult{Resource: delta.Resource, Amount: delta.Amount})
	}
	for _, shortfall := range result.Batch.Shortfalls {
		out.Shortfalls = append(out.Shortfalls, ShortfallResult{
			Resource:  shortfall.Resource,
			Unpaid:    shortfall.Unpaid,
			Converted: shortfall.Converted,
		})
	}
	return out
}
