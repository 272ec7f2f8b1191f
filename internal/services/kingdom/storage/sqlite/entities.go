package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

// EntityStore holds the entities of one stored kingdom.
type EntityStore struct {
	store     *Store
	kingdomID string
}

var _ realm.Store = (*EntityStore)(nil)

// Entities lists entities of kind ordered by id; an empty kind lists all.
func (e *EntityStore) Entities(ctx context.Context, kind string) ([]realm.Entity, error) {
	if err := e.store.ready(ctx); err != nil {
		return nil, err
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	query := `SELECT entity_id, kind, name, attrs_json FROM kingdom_entities WHERE kingdom_id = ?`
	args := []any{e.kingdomID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY entity_id`

	rows, err := e.store.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()
	var out []realm.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}

// Entity fetches one entity.
func (e *EntityStore) Entity(ctx context.Context, id string) (realm.Entity, error) {
	if err := e.store.ready(ctx); err != nil {
		return realm.Entity{}, err
	}
	row := e.store.sqlDB.QueryRowContext(ctx,
		`SELECT entity_id, kind, name, attrs_json FROM kingdom_entities WHERE kingdom_id = ? AND entity_id = ?`,
		e.kingdomID, strings.TrimSpace(id),
	)
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return realm.Entity{}, realm.ErrEntityNotFound
	}
	return entity, err
}

// PutEntity inserts or replaces an entity.
func (e *EntityStore) PutEntity(ctx context.Context, entity realm.Entity) error {
	if err := e.store.ready(ctx); err != nil {
		return err
	}
	return e.put(ctx, e.store.sqlDB, entity)
}

// PutEntities inserts or replaces every entity in one transaction.
func (e *EntityStore) PutEntities(ctx context.Context, entities []realm.Entity) error {
	if err := e.store.ready(ctx); err != nil {
		return err
	}
	tx, err := e.store.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entity batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, entity := range entities {
		if err := e.put(ctx, tx, entity); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entity batch: %w", err)
	}
	return nil
}

func (e *EntityStore) put(ctx context.Context, db execer, entity realm.Entity) error {
	normalized, err := entity.Normalize()
	if err != nil {
		return err
	}
	attrs := normalized.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode entity attrs: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO kingdom_entities (kingdom_id, entity_id, kind, name, attrs_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (kingdom_id, entity_id) DO UPDATE SET
		   kind = excluded.kind,
		   name = excluded.name,
		   attrs_json = excluded.attrs_json,
		   updated_at = excluded.updated_at`,
		e.kingdomID, normalized.ID, normalized.Kind, normalized.Name, string(attrsJSON), toMillis(e.store.now()),
	); err != nil {
		return fmt.Errorf("put entity %s: %w", normalized.ID, err)
	}
	return nil
}

// DeleteEntity removes an entity.
func (e *EntityStore) DeleteEntity(ctx context.Context, id string) error {
	if err := e.store.ready(ctx); err != nil {
		return err
	}
	result, err := e.store.sqlDB.ExecContext(ctx,
		`DELETE FROM kingdom_entities WHERE kingdom_id = ? AND entity_id = ?`,
		e.kingdomID, strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("delete entity %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entity %s: %w", id, err)
	}
	if affected == 0 {
		return realm.ErrEntityNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (realm.Entity, error) {
	var entity realm.Entity
	var attrsJSON string
	if err := row.Scan(&entity.ID, &entity.Kind, &entity.Name, &attrsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return realm.Entity{}, err
		}
		return realm.Entity{}, fmt.Errorf("scan entity: %w", err)
	}
	if err := json.Unmarshal([]byte(attrsJSON), &entity.Attrs); err != nil {
		return realm.Entity{}, fmt.Errorf("decode entity %s attrs: %w", entity.ID, err)
	}
	return entity, nil
}
