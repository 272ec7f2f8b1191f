package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
)

var _ engine.Journal = (*Store)(nil)

// JournalRecord is one stored check summary.
type JournalRecord struct {
	CheckID      string
	KingdomID    string
	DefinitionID string
	Verdict      engine.Verdict
	State        engine.State
	Outcome      string
	Success      bool
	Cancelled    bool
	Message      string
	Error        string
	RollTotal    int
	RollNatural  int
	Difficulty   int
	Seed         int64
	Applied      []resource.Delta
	Committed    []string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Record stores a finished check. Recording the same check twice keeps the
// first entry.
func (s *Store) Record(ctx context.Context, entry engine.JournalEntry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result := entry.Result
	applied := result.Batch.Applied
	if applied == nil {
		applied = []resource.Delta{}
	}
	appliedJSON, err := json.Marshal(applied)
	if err != nil {
		return fmt.Errorf("encode applied deltas: %w", err)
	}
	committed := result.Committed
	if committed == nil {
		committed = []string{}
	}
	committedJSON, err := json.Marshal(committed)
	if err != nil {
		return fmt.Errorf("encode committed commands: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR IGNORE INTO check_journal (
		   check_id, kingdom_id, definition_id, verdict, state, outcome,
		   success, cancelled, message, error,
		   roll_total, roll_natural, difficulty, seed,
		   applied_json, committed_json, started_at, finished_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.CheckID, result.KingdomID, result.DefinitionID, string(result.Verdict), string(result.State), result.Outcome,
		boolInt(result.Success), boolInt(result.Cancelled), result.Message, result.Error,
		result.Roll.Total, result.Roll.Natural, result.Roll.Difficulty, result.Seed,
		string(appliedJSON), string(committedJSON), toMillis(entry.StartedAt), toMillis(entry.FinishedAt),
	); err != nil {
		return fmt.Errorf("record check %s: %w", result.CheckID, err)
	}
	return nil
}

// Journal returns the most recent checks of a kingdom, newest first.
func (s *Store) Journal(ctx context.Context, kingdomID string, limit int) ([]JournalRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT check_id, kingdom_id, definition_id, verdict, state, outcome,
		        success, cancelled, message, error,
		        roll_total, roll_natural, difficulty, seed,
		        applied_json, committed_json, started_at, finished_at
		   FROM check_journal
		  WHERE kingdom_id = ?
		  ORDER BY finished_at DESC, check_id
		  LIMIT ?`,
		kingdomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var out []JournalRecord
	for rows.Next() {
		var record JournalRecord
		var verdict, state, appliedJSON, committedJSON string
		var success, cancelled int
		var startedAt, finishedAt int64
		if err := rows.Scan(
			&record.CheckID, &record.KingdomID, &record.DefinitionID, &verdict, &state, &record.Outcome,
			&success, &cancelled, &record.Message, &record.Error,
			&record.RollTotal, &record.RollNatural, &record.Difficulty, &record.Seed,
			&appliedJSON, &committedJSON, &startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		if err := json.Unmarshal([]byte(appliedJSON), &record.Applied); err != nil {
			return nil, fmt.Errorf("decode applied deltas: %w", err)
		}
		if err := json.Unmarshal([]byte(committedJSON), &record.Committed); err != nil {
			return nil, fmt.Errorf("decode committed commands: %w", err)
		}
		record.Verdict = engine.Verdict(verdict)
		record.State = engine.State(state)
		record.Success = success != 0
		record.Cancelled = cancelled != 0
		record.StartedAt = fromMillis(startedAt)
		record.FinishedAt = fromMillis(finishedAt)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}
