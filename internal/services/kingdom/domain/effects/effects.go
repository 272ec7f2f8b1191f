// Package effects provides the built-in prepared-command handlers: damaging
// and repairing structures, recruiting armies, seizing and claiming hexes,
// spawning enemy forces and shifting faction attitudes.
//
// Every handler follows the same contract: Prepare reads the entity store,
// makes its random selection with the check's seeded source and returns a
// Prepared value whose commit closure writes exactly what was previewed.
package effects

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

// Built-in command types.
const (
	TypeStructureDamage command.Type = "structure.damage"
	TypeStructureRepair command.Type = "structure.repair"
	TypeArmyRecruit     command.Type = "army.recruit"
	TypeHexSeize        command.Type = "hex.seize"
	TypeHexClaim        command.Type = "hex.claim"
	TypeEnemySpawn      command.Type = "enemy.spawn"
	TypeFactionAttitude command.Type = "faction.attitude"
)

// Entity attributes the handlers read and write.
const (
	AttrSettlement = "settlement"
	AttrDamaged    = "damaged"
	AttrClaimed    = "claimed"
	AttrSeizedBy   = "seized_by"
	AttrLevel      = "level"
	AttrHex        = "hex"
	AttrAttitude   = "attitude"
)

// Register adds every built-in handler to registry.
func Register(registry *command.Registry) error {
	for _, def := range Definitions() {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in handlers.
func NewRegistry() (*command.Registry, error) {
	registry := command.NewRegistry()
	if err := Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// Definitions lists the built-in handler registrations.
func Definitions() []command.Definition {
	return []command.Definition{
		{Type: TypeStructureDamage, Summary: "Damage a random intact structure", Handler: command.HandlerFunc(prepareStructureDamage)},
		{Type: TypeStructureRepair, Summary: "Repair a damaged structure", Handler: command.HandlerFunc(prepareStructureRepair)},
		{Type: TypeArmyRecruit, Summary: "Recruit a new army", Handler: command.HandlerFunc(prepareArmyRecruit), ValidateParams: validateArmyRecruit},
		{Type: TypeHexSeize, Summary: "Lose claimed hexes", Handler: command.HandlerFunc(prepareHexSeize), ValidateParams: validateCount},
		{Type: TypeHexClaim, Summary: "Claim the selected hex", Handler: command.HandlerFunc(prepareHexClaim)},
		{Type: TypeEnemySpawn, Summary: "Spawn an enemy force", Handler: command.HandlerFunc(prepareEnemySpawn), ValidateParams: validateEnemySpawn},
		{Type: TypeFactionAttitude, Summary: "Shift a faction's attitude", Handler: command.HandlerFunc(prepareFactionAttitude), ValidateParams: validateAttitudeSteps},
	}
}

// selected returns the entity id an earlier interaction step stored in the
// metadata key named by params[param], defaulting to defaultKey.
func selected(params command.Params, env command.Env, param, defaultKey string) string {
	key := params.String(param)
	if key == "" {
		key = defaultKey
	}
	value, ok := env.Metadata(key)
	if !ok {
		return ""
	}
	text, _ := value.(string)
	return strings.TrimSpace(text)
}

func entitiesOf(ctx context.Context, env command.Env, kind string, keep func(realm.Entity) bool) ([]realm.Entity, error) {
	store := env.Realm()
	if store == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	entities, err := store.Entities(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s entities: %w", kind, err)
	}
	out := entities[:0]
	for _, entity := range entities {
		if keep == nil || keep(entity) {
			out = append(out, entity)
		}
	}
	realm.SortByID(out)
	return out, nil
}

func displayName(entity realm.Entity) string {
	if entity.Name != "" {
		return entity.Name
	}
	return entity.ID
}

func putEntity(store realm.Store, entity realm.Entity) command.CommitFunc {
	return func(ctx context.Context) error {
		return store.PutEntity(ctx, entity)
	}
}

func validateCount(params command.Params) error {
	count, err := params.Int("count", 1)
	if err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("%w: count must be positive", command.ErrParamsInvalid)
	}
	return nil
}
