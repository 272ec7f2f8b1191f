package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
)

// Ledger is the resource ledger of one stored kingdom.
type Ledger struct {
	store     *Store
	kingdomID string
}

var _ resource.Ledger = (*Ledger)(nil)

// ShortfallRecord is one persisted debt record.
type ShortfallRecord struct {
	ID        int64
	KingdomID string
	resource.Shortfall
	CreatedAt time.Time
}

// Get returns one resource value; a resource never written reads as zero.
func (l *Ledger) Get(ctx context.Context, name string) (int, error) {
	if err := l.store.ready(ctx); err != nil {
		return 0, err
	}
	name = resource.Normalize(name)
	if !l.store.policies.Known(name) {
		return 0, fmt.Errorf("%w: %s", resource.ErrUnknownResource, name)
	}
	var value int
	err := l.store.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM kingdom_resources WHERE kingdom_id = ? AND resource = ?`,
		l.kingdomID, name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get resource %s: %w", name, err)
	}
	return value, nil
}

// Snapshot returns every declared resource, zero when never written.
func (l *Ledger) Snapshot(ctx context.Context) (map[string]int, error) {
	if err := l.store.ready(ctx); err != nil {
		return nil, err
	}
	return l.read(ctx, l.store.sqlDB)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (l *Ledger) read(ctx context.Context, db querier) (map[string]int, error) {
	values := make(map[string]int, len(l.store.policies))
	for name := range l.store.policies {
		values[name] = 0
	}
	rows, err := db.QueryContext(ctx,
		`SELECT resource, value FROM kingdom_resources WHERE kingdom_id = ?`,
		l.kingdomID,
	)
	if err != nil {
		return nil, fmt.Errorf("read resources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var value int
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return values, nil
}

// ApplyBatch plans deltas against the stored values and writes the result,
// including debt records, in one transaction.
func (l *Ledger) ApplyBatch(ctx context.Context, deltas []resource.Delta) (resource.BatchResult, error) {
	if err := l.store.ready(ctx); err != nil {
		return resource.BatchResult{}, err
	}
	if err := resource.Validate(l.store.policies, deltas); err != nil {
		return resource.BatchResult{}, err
	}

	tx, err := l.store.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return resource.BatchResult{}, fmt.Errorf("begin resource batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM kingdoms WHERE id = ?`, l.kingdomID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return resource.BatchResult{}, fmt.Errorf("%w: %s", ErrKingdomNotFound, l.kingdomID)
		}
		return resource.BatchResult{}, fmt.Errorf("check kingdom: %w", err)
	}

	current, err := l.read(ctx, tx)
	if err != nil {
		return resource.BatchResult{}, err
	}
	result, err := resource.Plan(l.store.policies, current, deltas)
	if err != nil {
		return resource.BatchResult{}, err
	}

	now := toMillis(l.store.now())
	for _, applied := range result.Applied {
		if err := upsertResource(ctx, tx, l.kingdomID, applied.Resource, result.After[applied.Resource], now); err != nil {
			return resource.BatchResult{}, err
		}
	}
	for _, shortfall := range result.Shortfalls {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kingdom_shortfalls (kingdom_id, resource, unpaid, converted, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			l.kingdomID, shortfall.Resource, shortfall.Unpaid, boolInt(shortfall.Converted), now,
		); err != nil {
			return resource.BatchResult{}, fmt.Errorf("record shortfall %s: %w", shortfall.Resource, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return resource.BatchResult{}, fmt.Errorf("commit resource batch: %w", err)
	}
	return result, nil
}

// Shortfalls returns the kingdom's debt records, oldest first.
func (l *Ledger) Shortfalls(ctx context.Context) ([]ShortfallRecord, error) {
	if err := l.store.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := l.store.sqlDB.QueryContext(ctx,
		`SELECT id, kingdom_id, resource, unpaid, converted, created_at
		   FROM kingdom_shortfalls
		  WHERE kingdom_id = ?
		  ORDER BY id`,
		l.kingdomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list shortfalls: %w", err)
	}
	defer rows.Close()
	var out []ShortfallRecord
	for rows.Next() {
		var record ShortfallRecord
		var converted int
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.KingdomID, &record.Resource, &record.Unpaid, &converted, &createdAt); err != nil {
			return nil, fmt.Errorf("scan shortfall: %w", err)
		}
		record.Converted = converted != 0
		record.CreatedAt = fromMillis(createdAt)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shortfalls: %w", err)
	}
	return out, nil
}
