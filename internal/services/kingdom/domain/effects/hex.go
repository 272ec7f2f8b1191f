package effects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/badge"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

// prepareHexSeize picks up to count claimed hexes to lose.
func prepareHexSeize(ctx context.Context, params command.Params, env command.Env) (*command.Prepared, error) {
	count, err := params.Int("count", 1)
	if err != nil {
		return nil, err
	}
	claimed, err := entitiesOf(ctx, env, realm.KindHex, func(e realm.Entity) bool {
		return e.Attr(AttrClaimed) == "true"
	})
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return nil, nil
	}
	env.Rand().Shuffle(len(claimed), func(i, j int) { claimed[i], claimed[j] = claimed[j], claimed[i] })
	if count > len(claimed) {
		count = len(claimed)
	}
	seized := claimed[:count]
	by := params.String("by")
	if by == "" {
		by = "rebels"
	}

	names := make([]string, 0, len(seized))
	updates := make([]realm.Entity, 0, len(seized))
	for _, hex := range seized {
		names = append(names, displayName(hex))
		updates = append(updates, hex.WithAttr(AttrClaimed, "false").WithAttr(AttrSeizedBy, by))
	}
	store := env.Realm()
	commit := func(ctx context.Context) error {
		if err := store.PutEntities(ctx, updates); err != nil {
			return fmt.Errorf("seize hexes: %w", err)
		}
		return nil
	}
	return command.NewPrepared(TypeHexSeize, fmt.Sprintf("Lose %s to %s", strings.Join(names, ", "), by), commit,
		badge.Valued("hex", "Lose {value} hex(es)", len(seized)),
	), nil
}

// prepareHexClaim claims the hex chosen on the map.
func prepareHexClaim(ctx context.Context, params command.Params, env command.Env) (*command.Prepared, error) {
	hexID := selected(params, env, "hex_key", realm.KindHex)
	if hexID == "" {
		return nil, nil
	}
	hex, err := env.Realm().Entity(ctx, hexID)
	if err != nil {
		if errors.Is(err, realm.ErrEntityNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load hex %s: %w", hexID, err)
	}
	if hex.Kind != realm.KindHex || hex.Attr(AttrClaimed) == "true" {
		return nil, nil
	}
	return command.NewPrepared(TypeHexClaim, "Claim "+displayName(hex),
		putEntity(env.Realm(), hex.WithAttr(AttrClaimed, "true").WithAttr(AttrSeizedBy, "")),
		badge.Valued("hex", "Claim {value} hex", 1),
	), nil
}
