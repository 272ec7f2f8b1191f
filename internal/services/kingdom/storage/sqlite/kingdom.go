package sqlite

import (
	"context"
	"fmt"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
)

// Kingdom is one stored kingdom as the check engine sees it.
type Kingdom struct {
	store    *Store
	info     realm.Kingdom
	ledger   *Ledger
	entities *EntityStore
}

var _ engine.Kingdom = (*Kingdom)(nil)

// Kingdom returns the handle the check engine runs against.
func (s *Store) Kingdom(ctx context.Context, kingdomID string) (*Kingdom, error) {
	info, err := s.GetKingdom(ctx, kingdomID)
	if err != nil {
		return nil, err
	}
	return &Kingdom{
		store:    s,
		info:     info,
		ledger:   &Ledger{store: s, kingdomID: info.ID},
		entities: &EntityStore{store: s, kingdomID: info.ID},
	}, nil
}

// ID returns the kingdom id.
func (k *Kingdom) ID() string { return k.info.ID }

// Name returns the kingdom name as stored when the handle was opened.
func (k *Kingdom) Name() string { return k.info.Name }

// Ledger returns the kingdom's resource ledger.
func (k *Kingdom) Ledger() resource.Ledger { return k.ledger }

// Entities returns the kingdom's entity store.
func (k *Kingdom) Entities() realm.Store { return k.entities }

// Shortfalls returns the kingdom's debt records, oldest first.
func (k *Kingdom) Shortfalls(ctx context.Context) ([]ShortfallRecord, error) {
	return k.ledger.Shortfalls(ctx)
}

// Snapshot reads the kingdom record, its resources and its entity counts.
func (k *Kingdom) Snapshot(ctx context.Context) (realm.Kingdom, error) {
	info, err := k.store.GetKingdom(ctx, k.info.ID)
	if err != nil {
		return realm.Kingdom{}, err
	}
	resources, err := k.ledger.Snapshot(ctx)
	if err != nil {
		return realm.Kingdom{}, err
	}
	counts, err := k.entities.counts(ctx)
	if err != nil {
		return realm.Kingdom{}, err
	}
	info.Resources = resources
	info.Counts = counts
	return info, nil
}

func (e *EntityStore) counts(ctx context.Context) (map[string]int, error) {
	rows, err := e.store.sqlDB.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM kingdom_entities WHERE kingdom_id = ? GROUP BY kind`,
		e.kingdomID,
	)
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan entity count: %w", err)
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity counts: %w", err)
	}
	return counts, nil
}
