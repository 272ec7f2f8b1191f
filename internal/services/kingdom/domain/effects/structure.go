package effects

import (
	"context"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/badge"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

// prepareStructureDamage picks one intact structure, scoped to the settlement
// chosen by an earlier step when there is one.
func prepareStructureDamage(ctx context.Context, params command.Params, env command.Env) (*command.Prepared, error) {
	settlement := selected(params, env, "settlement_key", realm.KindSettlement)
	candidates, err := entitiesOf(ctx, env, realm.KindStructure, func(e realm.Entity) bool {
		if e.Attr(AttrDamaged) == "true" {
			return false
		}
		return settlement == "" || e.Attr(AttrSettlement) == settlement
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	target := candidates[env.Rand().Intn(len(candidates))]
	name := displayName(target)
	return command.NewPrepared(TypeStructureDamage, "Damage "+name,
		putEntity(env.Realm(), target.WithAttr(AttrDamaged, "true")),
		badge.Text("structure", name+" is damaged", badge.PolarityNegative),
	), nil
}

// prepareStructureRepair repairs the selected structure or a random damaged one.
func prepareStructureRepair(ctx context.Context, params command.Params, env command.Env) (*command.Prepared, error) {
	chosen := selected(params, env, "structure_key", realm.KindStructure)
	candidates, err := entitiesOf(ctx, env, realm.KindStructure, func(e realm.Entity) bool {
		if e.Attr(AttrDamaged) != "true" {
			return false
		}
		return chosen == "" || e.ID == chosen
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	target := candidates[env.Rand().Intn(len(candidates))]
	name := displayName(target)
	return command.NewPrepared(TypeStructureRepair, "Repair "+name,
		putEntity(env.Realm(), target.WithAttr(AttrDamaged, "false")),
		badge.Text("structure", name+" is repaired", badge.PolarityPositive),
	), nil
}
