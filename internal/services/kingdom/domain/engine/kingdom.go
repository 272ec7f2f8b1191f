package engine

import (
	"context"
	"fmt"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
)

// Kingdom is the injected view of one kingdom: a snapshot for predicates,
// the ledger modifiers are applied to and the entity store effects use.
type Kingdom interface {
	ID() string
	Snapshot(ctx context.Context) (realm.Kingdom, error)
	Ledger() resource.Ledger
	Entities() realm.Store
}

// BindKingdom assembles a Kingdom from its parts. Snapshots read resources
// from the ledger and entity counts from the store.
func BindKingdom(info realm.Kingdom, ledger resource.Ledger, entities realm.Store) Kingdom {
	return boundKingdom{info: info.Clone(), ledger: ledger, entities: entities}
}

type boundKingdom struct {
	info     realm.Kingdom
	ledger   resource.Ledger
	entities realm.Store
}

func (k boundKingdom) ID() string              { return k.info.ID }
func (k boundKingdom) Ledger() resource.Ledger { return k.ledger }
func (k boundKingdom) Entities() realm.Store   { return k.entities }

func (k boundKingdom) Snapshot(ctx context.Context) (realm.Kingdom, error) {
	snapshot := k.info.Clone()
	if k.ledger != nil {
		resources, err := k.ledger.Snapshot(ctx)
		if err != nil {
			return realm.Kingdom{}, fmt.Errorf("snapshot resources: %w", err)
		}
		snapshot.Resources = resources
	}
	if k.entities != nil {
		entities, err := k.entities.Entities(ctx, "")
		if err != nil {
			return realm.Kingdom{}, fmt.Errorf("snapshot entities: %w", err)
		}
		snapshot.Counts = realm.CountKinds(entities)
	}
	return snapshot, nil
}
