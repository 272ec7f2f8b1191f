package effects

import (
	"context"
	"fmt"
	"strconv"

	"github.com/louisbranch/kingdom/internal/platform/id"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/badge"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

func validateArmyRecruit(params command.Params) error {
	level, err := params.Int("level", 1)
	if err != nil {
		return err
	}
	if level < 1 {
		return fmt.Errorf("%w: level must be positive", command.ErrParamsInvalid)
	}
	return nil
}

// prepareArmyRecruit creates an army in the selected settlement. The id is
// allocated here so the preview names the unit that will be committed.
func prepareArmyRecruit(ctx context.Context, params command.Params, env command.Env) (*command.Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	settlement := selected(params, env, "settlement_key", realm.KindSettlement)
	if params.String("require_settlement") == "true" && settlement == "" {
		return nil, nil
	}
	level, err := params.Int("level", 1)
	if err != nil {
		return nil, err
	}
	armyID, err := id.NewPrefixed("army")
	if err != nil {
		return nil, fmt.Errorf("allocate army id: %w", err)
	}
	name := params.String("name")
	if name == "" {
		name = "Recruits"
	}
	army := realm.Entity{
		ID:   armyID,
		Kind: realm.KindArmy,
		Name: name,
		Attrs: map[string]string{
			AttrLevel: strconv.Itoa(level),
		},
	}
	if settlement != "" {
		army.Attrs[AttrSettlement] = settlement
	}
	return command.NewPrepared(TypeArmyRecruit, fmt.Sprintf("Recruit %s (level %d)", name, level),
		putEntity(env.Realm(), army),
		badge.Text("army", "Recruit "+name, badge.PolarityPositive),
	), nil
}
