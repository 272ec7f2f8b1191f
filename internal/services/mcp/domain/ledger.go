package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/kingdom/internal/services/kingdom/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// LedgerGetInput selects a kingdom.
type LedgerGetInput struct {
	KingdomID    string `json:"kingdom_id" jsonschema:"kingdom id"`
	JournalLimit int    `json:"journal_limit,omitempty" jsonschema:"number of recent checks to include; 0 omits the journal"`
}

// DebtResult is one persisted shortfall.
type DebtResult struct {
	Resource  string `json:"resource" jsonschema:"resource name"`
	Unpaid    int    `json:"unpaid" jsonschema:"amount the kingdom could not pay"`
	Converted bool   `json:"converted" jsonschema:"whether the unpaid amount became unrest"`
	CreatedAt string `json:"created_at" jsonschema:"RFC3339 timestamp"`
}

// JournalResult is one finished check from the journal.
type JournalResult struct {
	CheckID      string        `json:"check_id" jsonschema:"check invocation id"`
	DefinitionID string        `json:"definition_id" jsonschema:"check definition id"`
	Verdict      string        `json:"verdict" jsonschema:"check verdict"`
	Outcome      string        `json:"outcome,omitempty" jsonschema:"degree of success"`
	Applied      []DeltaResult `json:"applied,omitempty" jsonschema:"resource changes written to the ledger"`
	FinishedAt   string        `json:"finished_at" jsonschema:"RFC3339 timestamp"`
}

// LedgerGetResult is a kingdom's treasury and entity counts.
type LedgerGetResult struct {
	KingdomID  string          `json:"kingdom_id" jsonschema:"kingdom id"`
	Name       string          `json:"name" jsonschema:"kingdom name"`
	Level      int             `json:"level" jsonschema:"kingdom level"`
	ControlDC  int             `json:"control_dc" jsonschema:"default check DC"`
	Resources  map[string]int  `json:"resources" jsonschema:"resource values"`
	Counts     map[string]int  `json:"counts,omitempty" jsonschema:"entity counts by kind"`
	Shortfalls []DebtResult    `json:"shortfalls,omitempty" jsonschema:"debt records, oldest first"`
	Journal    []JournalResult `json:"journal,omitempty" jsonschema:"recent checks, newest first"`
}

// KingdomFoundInput names a kingdom to create.
type KingdomFoundInput struct {
	KingdomID string `json:"kingdom_id" jsonschema:"kingdom id"`
	Name      string `json:"name,omitempty" jsonschema:"kingdom name; defaults to the id"`
}

// LedgerGetTool defines the MCP tool schema for reading a kingdom.
func LedgerGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "kingdom_ledger_get",
		Description: "Returns a kingdom's resources, entity counts, debts and recent checks",
	}
}

// KingdomFoundTool defines the MCP tool schema for founding a kingdom.
func KingdomFoundTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "kingdom_found",
		Description: "Founds a kingdom with the starting treasury; existing kingdoms are left untouched",
	}
}

// LedgerGetHandler reads a kingdom.
func LedgerGetHandler(kingdoms Kingdoms) mcp.ToolHandlerFor[LedgerGetInput, LedgerGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LedgerGetInput) (*mcp.CallToolResult, LedgerGetResult, error) {
		kingdomID := strings.TrimSpace(input.KingdomID)
		if kingdomID == "" {
			return nil, LedgerGetResult{}, fmt.Errorf("kingdom_id is required")
		}
		return ledger(ctx, kingdoms, kingdomID, input.JournalLimit)
	}
}

// KingdomFoundHandler founds a kingdom and returns its ledger.
func KingdomFoundHandler(kingdoms Kingdoms) mcp.ToolHandlerFor[KingdomFoundInput, LedgerGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input KingdomFoundInput) (*mcp.CallToolResult, LedgerGetResult, error) {
		kingdomID := strings.TrimSpace(input.KingdomID)
		if kingdomID == "" {
			return nil, LedgerGetResult{}, fmt.Errorf("kingdom_id is required")
		}
		if err := kingdoms.FoundKingdom(ctx, kingdomID, input.Name); err != nil {
			return nil, LedgerGetResult{}, fmt.Errorf("found kingdom: %w", err)
		}
		return ledger(ctx, kingdoms, kingdomID, 0)
	}
}

func ledger(ctx context.Context, kingdoms Kingdoms, kingdomID string, journalLimit int) (*mcp.CallToolResult, LedgerGetResult, error) {
	snapshot, err := kingdoms.Kingdom(ctx, kingdomID)
	if err != nil {
		return nil, LedgerGetResult{}, fmt.Errorf("get kingdom: %w", err)
	}
	result := LedgerGetResult{
		KingdomID: snapshot.ID,
		Name:      snapshot.Name,
		Level:     snapshot.Level,
		ControlDC: snapshot.ControlDC,
		Resources: snapshot.Resources,
		Counts:    snapshot.Counts,
	}

	shortfalls, err := kingdoms.Shortfalls(ctx, kingdomID)
	if err != nil {
		return nil, LedgerGetResult{}, fmt.Errorf("list shortfalls: %w", err)
	}
	for _, record := range shortfalls {
		result.Shortfalls = append(result.Shortfalls, DebtResult{
			Resource:  record.Resource,
			Unpaid:    record.Unpaid,
			Converted: record.Converted,
			CreatedAt: formatTime(record.CreatedAt),
		})
	}

	if journalLimit > 0 {
		records, err := kingdoms.Journal(ctx, kingdomID, journalLimit)
		if err != nil {
			return nil, LedgerGetResult{}, fmt.Errorf("list journal: %w", err)
		}
		for _, record := range records {
			result.Journal = append(result.Journal, journalResult(record))
		}
	}
	return nil, result, nil
}

func journalResult(record sqlite.JournalRecord) JournalResult {
	entry := JournalResult{
		CheckID:      record.CheckID,
		DefinitionID: record.DefinitionID,
		Verdict:      string(record.Verdict),
		Outcome:      record.Outcome,
		FinishedAt:   formatTime(record.FinishedAt),
	}
	for _, delta := range record.Applied {
		entry.Applied = append(entry.Applied, DeltaResult{Resource: delta.Resource, Amount: delta.Amount})
	}
	return entry
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
