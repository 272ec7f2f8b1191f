package effects

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/badge"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

// Attitude is a faction's disposition toward the kingdom.
type Attitude string

const (
	AttitudeHostile     Attitude = "hostile"
	AttitudeUnfriendly  Attitude = "unfriendly"
	AttitudeIndifferent Attitude = "indifferent"
	AttitudeFriendly    Attitude = "friendly"
	AttitudeHelpful     Attitude = "helpful"
)

var attitudeLadder = []Attitude{AttitudeHostile, AttitudeUnfriendly, AttitudeIndifferent, AttitudeFriendly, AttitudeHelpful}

// ParseAttitude parses an attitude; blank means indifferent.
func ParseAttitude(value string) (Attitude, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return AttitudeIndifferent, nil
	}
	for _, attitude := range attitudeLadder {
		if string(attitude) == value {
			return attitude, nil
		}
	}
	return "", fmt.Errorf("unknown attitude %q", value)
}

// Shift moves an attitude steps rungs along the ladder, clamped at both ends.
func (a Attitude) Shift(steps int) Attitude {
	index := 2
	for i, attitude := range attitudeLadder {
		if attitude == a {
			index = i
		}
	}
	index = min(max(index+steps, 0), len(attitudeLadder)-1)
	return attitudeLadder[index]
}

func validateAttitudeSteps(params command.Params) error {
	steps, err := params.Int("steps", 0)
	if err != nil {
		return err
	}
	if steps == 0 {
		return fmt.Errorf("%w: steps must be non-zero", command.ErrParamsInvalid)
	}
	return nil
}

// prepareFactionAttitude shifts the selected faction, or a random one. A
// faction already at the end of the ladder has nothing to change.
func prepareFactionAttitude(ctx context.Context, params command.Params, env command.Env) (*command.Prepared, error) {
	steps, err := params.Int("steps", 0)
	if err != nil {
		return nil, err
	}
	chosen := selected(params, env, "faction_key", realm.KindFaction)
	candidates, err := entitiesOf(ctx, env, realm.KindFaction, func(e realm.Entity) bool {
		return chosen == "" || e.ID == chosen
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	faction := candidates[env.Rand().Intn(len(candidates))]
	current, err := ParseAttitude(faction.Attr(AttrAttitude))
	if err != nil {
		return nil, fmt.Errorf("faction %s: %w", faction.ID, err)
	}
	next := current.Shift(steps)
	if next == current {
		return nil, nil
	}
	polarity := badge.PolarityPositive
	if steps < 0 {
		polarity = badge.PolarityNegative
	}
	name := displayName(faction)
	return command.NewPrepared(TypeFactionAttitude, fmt.Sprintf("%s becomes %s", name, next),
		putEntity(env.Realm(), faction.WithAttr(AttrAttitude, string(next))),
		badge.Text("faction", fmt.Sprintf("%s: %s → %s", name, current, next), polarity),
	), nil
}
