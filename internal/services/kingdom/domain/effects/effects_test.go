package effects

import (
	"context"
	"math/rand"
	"strconv"
	"testing"

	"github.com/louisbranch/kingdom/internal/core/check"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

type testEnv struct {
	metadata map[string]any
	store    *realm.MemoryStore
	rng      *rand.Rand
}

func newEnv(seed int64, entities ...realm.Entity) *testEnv {
	return &testEnv{
		metadata: map[string]any{},
		store:    realm.NewMemoryStore(entities...),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (e *testEnv) KingdomID() string     { return "k1" }
func (e *testEnv) Outcome() check.Degree { return check.Failure }
func (e *testEnv) Metadata(key string) (any, bool) {
	value, ok := e.metadata[key]
	return value, ok
}
func (e *testEnv) Rand() *rand.Rand   { return e.rng }
func (e *testEnv) Realm() realm.Store { return e.store }

func registry(t *testing.T) *command.Registry {
	t.Helper()
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func structures() []realm.Entity {
	return []realm.Entity{
		{ID: "s1", Kind: realm.KindSettlement, Name: "Tatzlford"},
		{ID: "st1", Kind: realm.KindStructure, Name: "Granary", Attrs: map[string]string{AttrSettlement: "s1"}},
		{ID: "st2", Kind: realm.KindStructure, Name: "Barracks", Attrs: map[string]string{AttrSettlement: "s1"}},
		{ID: "st3", Kind: realm.KindStructure, Name: "Shrine", Attrs: map[string]string{AttrSettlement: "s2"}},
	}
}

func TestStructureDamagePreviewMatchesCommit(t *testing.T) {
	ctx := context.Background()
	env := newEnv(7, structures()...)
	env.metadata["settlement"] = "s1"

	prepared, err := registry(t).Prepare(ctx, command.Spec{Type: TypeStructureDamage}, env)
	if err != nil || prepared == nil {
		t.Fatalf("Prepare() = %v, %v", prepared, err)
	}

	// Nothing changes until commit.
	damaged, _ := env.store.Entities(ctx, realm.KindStructure)
	for _, structure := range damaged {
		if structure.Attr(AttrDamaged) == "true" {
			t.Fatalf("prepare mutated %s", structure.ID)
		}
	}

	if err := prepared.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	all, _ := env.store.Entities(ctx, realm.KindStructure)
	var hit []string
	for _, structure := range all {
		if structure.Attr(AttrDamaged) == "true" {
			hit = append(hit, structure.ID)
			if prepared.Description != "Damage "+structure.Name {
				t.Fatalf("preview %q does not name committed target %s", prepared.Description, structure.Name)
			}
		}
	}
	if len(hit) != 1 || hit[0] == "st3" {
		t.Fatalf("damaged = %v, want one structure in s1", hit)
	}
}

func TestStructureDamageWithoutTargetReturnsNil(t *testing.T) {
	env := newEnv(1, realm.Entity{ID: "st1", Kind: realm.KindStructure, Attrs: map[string]string{AttrDamaged: "true"}})
	prepared, err := registry(t).Prepare(context.Background(), command.Spec{Type: TypeStructureDamage}, env)
	if err != nil || prepared != nil {
		t.Fatalf("Prepare() = %v, %v; want nil, nil", prepared, err)
	}
}

func TestStructureRepair(t *testing.T) {
	ctx := context.Background()
	env := newEnv(1, realm.Entity{ID: "st1", Kind: realm.KindStructure, Name: "Mill", Attrs: map[string]string{AttrDamaged: "true"}})
	prepared, err := registry(t).Prepare(ctx, command.Spec{Type: TypeStructureRepair}, env)
	if err != nil || prepared == nil {
		t.Fatalf("Prepare() = %v, %v", prepared, err)
	}
	if err := prepared.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	mill, _ := env.store.Entity(ctx, "st1")
	if mill.Attr(AttrDamaged) != "false" {
		t.Fatalf("mill damaged = %q", mill.Attr(AttrDamaged))
	}
}

func TestArmyRecruit(t *testing.T) {
	ctx := context.Background()
	env := newEnv(1)
	env.metadata["settlement"] = "s1"
	prepared, err := registry(t).Prepare(ctx, command.Spec{Type: TypeArmyRecruit, Params: command.Params{"name": "Militia", "level": 2}}, env)
	if err != nil || prepared == nil {
		t.Fatalf("Prepare() = %v, %v", prepared, err)
	}
	if armies, _ := env.store.Entities(ctx, realm.KindArmy); len(armies) != 0 {
		t.Fatal("army created before commit")
	}
	if err := prepared.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	armies, _ := env.store.Entities(ctx, realm.KindArmy)
	if len(armies) != 1 || armies[0].Name != "Militia" || armies[0].Attr(AttrLevel) != "2" || armies[0].Attr(AttrSettlement) != "s1" {
		t.Fatalf("armies = %+v", armies)
	}
}

func TestArmyRecruitRequiresSettlementWhenAsked(t *testing.T) {
	prepared, err := registry(t).Prepare(context.Background(), command.Spec{
		Type:   TypeArmyRecruit,
		Params: command.Params{"require_settlement": "true"},
	}, newEnv(1))
	if err != nil || prepared != nil {
		t.Fatalf("Prepare() = %v, %v; want nil, nil", prepared, err)
	}
}

func TestHexSeize(t *testing.T) {
	ctx := context.Background()
	env := newEnv(3,
		realm.Entity{ID: "h1", Kind: realm.KindHex, Attrs: map[string]string{AttrClaimed: "true"}},
		realm.Entity{ID: "h2", Kind: realm.KindHex, Attrs: map[string]string{AttrClaimed: "true"}},
		realm.Entity{ID: "h3", Kind: realm.KindHex},
	)
	prepared, err := registry(t).Prepare(ctx, command.Spec{Type: TypeHexSeize, Params: command.Params{"count": 5, "by": "bandits"}}, env)
	if err != nil || prepared == nil {
		t.Fatalf("Prepare() = %v, %v", prepared, err)
	}
	if err := prepared.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	hexes, _ := env.store.Entities(ctx, realm.KindHex)
	for _, hex := range hexes {
		if hex.Attr(AttrClaimed) == "true" {
			t.Fatalf("hex %s still claimed", hex.ID)
		}
	}
	h1, _ := env.store.Entity(ctx, "h1")
	if h1.Attr(AttrSeizedBy) != "bandits" {
		t.Fatalf("seized_by = %q", h1.Attr(AttrSeizedBy))
	}
}

func TestHexSeizeRejectsBadCount(t *testing.T) {
	_, err := registry(t).Prepare(context.Background(), command.Spec{Type: TypeHexSeize, Params: command.Params{"count": 0}}, newEnv(1))
	if err == nil {
		t.Fatal("expected params error")
	}
}

func TestHexClaim(t *testing.T) {
	ctx := context.Background()
	env := newEnv(1, realm.Entity{ID: "h9", Kind: realm.KindHex})
	reg := registry(t)

	prepared, err := reg.Prepare(ctx, command.Spec{Type: TypeHexClaim}, env)
	if err != nil || prepared != nil {
		t.Fatalf("Prepare() without selection = %v, %v", prepared, err)
	}

	env.metadata["hex"] = "h9"
	prepared, err = reg.Prepare(ctx, command.Spec{Type: TypeHexClaim}, env)
	if err != nil || prepared == nil {
		t.Fatalf("Prepare() = %v, %v", prepared, err)
	}
	if err := prepared.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	hex, _ := env.store.Entity(ctx, "h9")
	if hex.Attr(AttrClaimed) != "true" {
		t.Fatal("hex not claimed")
	}

	env.metadata["hex"] = "missing"
	if prepared, err := reg.Prepare(ctx, command.Spec{Type: TypeHexClaim}, env); err != nil || prepared != nil {
		t.Fatalf("Prepare() missing hex = %v, %v", prepared, err)
	}
}

func TestEnemySpawnRollsStrengthOnce(t *testing.T) {
	ctx := context.Background()
	env := newEnv(11, realm.Entity{ID: "h1", Kind: realm.KindHex, Attrs: map[string]string{AttrClaimed: "true"}})
	prepared, err := registry(t).Prepare(ctx, command.Spec{Type: TypeEnemySpawn, Params: command.Params{"name": "Bandits", "strength": "1d4+1"}}, env)
	if err != nil || prepared == nil {
		t.Fatalf("Prepare() = %v, %v", prepared, err)
	}
	if prepared.Badges[0].Value == nil {
		t.Fatal("expected strength in badge")
	}
	strength := *prepared.Badges[0].Value
	if strength < 2 || strength > 5 {
		t.Fatalf("strength %d outside 1d4+1", strength)
	}
	if err := prepared.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	forces, _ := env.store.Entities(ctx, realm.KindEnemyForce)
	if len(forces) != 1 || forces[0].Attr(AttrHex) != "h1" {
		t.Fatalf("forces = %+v", forces)
	}
	if forces[0].Attr(AttrLevel) != strconv.Itoa(strength) {
		t.Fatalf("committed level %q differs from previewed %d", forces[0].Attr(AttrLevel), strength)
	}
}

func TestEnemySpawnValidatesFormula(t *testing.T) {
	_, err := registry(t).Prepare(context.Background(), command.Spec{Type: TypeEnemySpawn, Params: command.Params{"strength": "lots"}}, newEnv(1))
	if err == nil {
		t.Fatal("expected params error")
	}
}

func TestFactionAttitude(t *testing.T) {
	ctx := context.Background()
	env := newEnv(1,
		realm.Entity{ID: "f1", Kind: realm.KindFaction, Name: "Swordlords", Attrs: map[string]string{AttrAttitude: "unfriendly"}},
	)
	prepared, err := registry(t).Prepare(ctx, command.Spec{Type: TypeFactionAttitude, Params: command.Params{"steps": 1}}, env)
	if err != nil || prepared == nil {
		t.Fatalf("Prepare() = %v, %v", prepared, err)
	}
	if err := prepared.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	faction, _ := env.store.Entity(ctx, "f1")
	if faction.Attr(AttrAttitude) != string(AttitudeIndifferent) {
		t.Fatalf("attitude = %q", faction.Attr(AttrAttitude))
	}
}

func TestFactionAttitudeAtLadderEndReturnsNil(t *testing.T) {
	env := newEnv(1, realm.Entity{ID: "f1", Kind: realm.KindFaction, Attrs: map[string]string{AttrAttitude: "helpful"}})
	prepared, err := registry(t).Prepare(context.Background(), command.Spec{Type: TypeFactionAttitude, Params: command.Params{"steps": 2}}, env)
	if err != nil || prepared != nil {
		t.Fatalf("Prepare() = %v, %v; want nil, nil", prepared, err)
	}
}

func TestAttitudeShift(t *testing.T) {
	tests := []struct {
		from  Attitude
		steps int
		want  Attitude
	}{
		{AttitudeIndifferent, 1, AttitudeFriendly},
		{AttitudeIndifferent, -2, AttitudeHostile},
		{AttitudeHostile, -1, AttitudeHostile},
		{AttitudeFriendly, 5, AttitudeHelpful},
	}
	for _, tt := range tests {
		if got := tt.from.Shift(tt.steps); got != tt.want {
			t.Errorf("%s.Shift(%d) = %s, want %s", tt.from, tt.steps, got, tt.want)
		}
	}
	if _, err := ParseAttitude("smitten"); err == nil {
		t.Fatal("expected parse error")
	}
}
