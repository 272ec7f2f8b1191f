package effects

import (
	"context"
	"fmt"
	"strconv"

	"github.com/louisbranch/kingdom/internal/core/dice"
	"github.com/louisbranch/kingdom/internal/platform/id"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/badge"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

func validateEnemySpawn(params command.Params) error {
	if formula := params.String("strength"); formula != "" {
		if _, err := dice.Parse(formula); err != nil {
			return fmt.Errorf("%w: %v", command.ErrParamsInvalid, err)
		}
	}
	return nil
}

// prepareEnemySpawn places an enemy force on a random claimed hex. Its
// strength formula is rolled here so the preview shows the final number.
func prepareEnemySpawn(ctx context.Context, params command.Params, env command.Env) (*command.Prepared, error) {
	hexes, err := entitiesOf(ctx, env, realm.KindHex, func(e realm.Entity) bool {
		return e.Attr(AttrClaimed) == "true"
	})
	if err != nil {
		return nil, err
	}
	if len(hexes) == 0 {
		return nil, nil
	}
	hex := hexes[env.Rand().Intn(len(hexes))]

	strength := 1
	if formula := params.String("strength"); formula != "" {
		parsed, err := dice.Parse(formula)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", command.ErrParamsInvalid, err)
		}
		strength = max(parsed.Roll(env.Rand()).Total, 1)
	}
	name := params.String("name")
	if name == "" {
		name = "Hostile force"
	}
	forceID, err := id.NewPrefixed("enemy")
	if err != nil {
		return nil, fmt.Errorf("allocate enemy id: %w", err)
	}
	force := realm.Entity{
		ID:   forceID,
		Kind: realm.KindEnemyForce,
		Name: name,
		Attrs: map[string]string{
			AttrHex:   hex.ID,
			AttrLevel: strconv.Itoa(strength),
		},
	}
	return command.NewPrepared(TypeEnemySpawn, fmt.Sprintf("%s (level %d) appears at %s", name, strength, displayName(hex)),
		putEntity(env.Realm(), force),
		badge.Valued("enemy", name+" level {value}", strength),
	), nil
}
