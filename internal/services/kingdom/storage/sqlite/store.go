// Package sqlite provides SQLite-backed kingdom storage: kingdom records,
// the resource ledger with its debt records, kingdom entities and the check
// journal.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
	"github.com/louisbranch/kingdom/internal/services/kingdom/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var (
	// ErrKingdomNotFound indicates an unknown kingdom id.
	ErrKingdomNotFound = apperrors.New(apperrors.CodeKingdomNotFound, "kingdom not found")
	// ErrKingdomExists indicates a kingdom id that is already taken.
	ErrKingdomExists = errors.New("kingdom already exists")
)

// Store persists kingdoms in SQLite.
type Store struct {
	sqlDB    *sql.DB
	policies resource.Policies
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPolicies sets the resource policies the ledger enforces.
func WithPolicies(policies resource.Policies) Option {
	return func(s *Store) {
		if policies != nil {
			s.policies = policies
		}
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite kingdom store and applies embedded migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store := &Store{sqlDB: sqlDB, policies: resource.DefaultPolicies(), now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// CreateKingdom inserts a kingdom with its starting resources.
func (s *Store) CreateKingdom(ctx context.Context, kingdom realm.Kingdom) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	kingdomID := strings.TrimSpace(kingdom.ID)
	if kingdomID == "" {
		return fmt.Errorf("kingdom id is required")
	}
	name := strings.TrimSpace(kingdom.Name)
	if name == "" {
		name = kingdomID
	}
	level := kingdom.Level
	if level <= 0 {
		level = 1
	}
	for name := range kingdom.Resources {
		if !s.policies.Known(name) {
			return fmt.Errorf("%w: %s", resource.ErrUnknownResource, name)
		}
	}
	now := toMillis(s.now())

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create kingdom: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kingdoms (id, name, level, control_dc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		kingdomID, name, level, kingdom.ControlDC, now, now,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrKingdomExists
		}
		return fmt.Errorf("create kingdom: %w", err)
	}
	for resourceName, value := range kingdom.Resources {
		if err := upsertResource(ctx, tx, kingdomID, resource.Normalize(resourceName), value, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create kingdom: %w", err)
	}
	return nil
}

// GetKingdom returns the kingdom record without resources or counts.
func (s *Store) GetKingdom(ctx context.Context, kingdomID string) (realm.Kingdom, error) {
	if err := s.ready(ctx); err != nil {
		return realm.Kingdom{}, err
	}
	var kingdom realm.Kingdom
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, level, control_dc FROM kingdoms WHERE id = ?`,
		strings.TrimSpace(kingdomID),
	).Scan(&kingdom.ID, &kingdom.Name, &kingdom.Level, &kingdom.ControlDC)
	if errors.Is(err, sql.ErrNoRows) {
		return realm.Kingdom{}, fmt.Errorf("%w: %s", ErrKingdomNotFound, kingdomID)
	}
	if err != nil {
		return realm.Kingdom{}, fmt.Errorf("get kingdom: %w", err)
	}
	return kingdom, nil
}

// ListKingdoms returns every kingdom record ordered by id.
func (s *Store) ListKingdoms(ctx context.Context) ([]realm.Kingdom, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, level, control_dc FROM kingdoms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list kingdoms: %w", err)
	}
	defer rows.Close()
	var out []realm.Kingdom
	for rows.Next() {
		var kingdom realm.Kingdom
		if err := rows.Scan(&kingdom.ID, &kingdom.Name, &kingdom.Level, &kingdom.ControlDC); err != nil {
			return nil, fmt.Errorf("scan kingdom: %w", err)
		}
		out = append(out, kingdom)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kingdoms: %w", err)
	}
	return out, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertResource(ctx context.Context, db execer, kingdomID, name string, value int, now int64) error {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO kingdom_resources (kingdom_id, resource, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (kingdom_id, resource) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		kingdomID, name, value, now,
	); err != nil {
		return fmt.Errorf("write resource %s: %w", name, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
