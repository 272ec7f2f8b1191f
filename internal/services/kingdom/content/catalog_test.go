package content

import (
	"context"
	"testing"

	"github.com/louisbranch/kingdom/internal/core/check"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/effects"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/interaction"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/modifier"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBuiltin(t *testing.T, id string, kingdom engine.Kingdom, input engine.Input) engine.Result {
	t.Helper()
	registry, err := effects.NewRegistry()
	require.NoError(t, err)
	modifiers := modifier.NewEngine(nil)
	catalog, err := newLoader(t).LoadCatalog(newValidatorWith(registry, modifiers), "")
	require.NoError(t, err)
	def, err := catalog.Get(id)
	require.NoError(t, err)

	result, err := engine.NewCoordinator(registry, modifiers).Run(context.Background(), kingdom, def, input)
	require.NoError(t, err)
	return result
}

func TestRecruitArmyScript(t *testing.T) {
	ledger := resource.NewMemoryLedger(nil, map[string]int{resource.Gold: 3})
	store := realm.NewMemoryStore(realm.Entity{ID: "s1", Kind: realm.KindSettlement, Name: "Tatzlford"})
	kingdom := engine.BindKingdom(realm.Kingdom{ID: "k1", ControlDC: 15}, ledger, store)

	result := runBuiltin(t, "recruit-army", kingdom, engine.Input{
		Skill: "warfare",
		Roll:  &check.Roll{Total: 17, Natural: 9},
		Prompter: interaction.Scripted{
			"settlement": interaction.Value("s1"),
			"army_name":  interaction.Value("Tatzlford Pikes"),
		},
	})
	assert.Equal(t, engine.VerdictOK, result.Verdict, result.Error)
	assert.Equal(t, "Tatzlford Pikes musters under the kingdom's banner.", result.Message)
	assert.Len(t, result.Committed, 1)
	assert.Equal(t, "Tatzlford Pikes", result.Data.Outputs["army_name"])

	armies, err := store.Entities(context.Background(), realm.KindArmy)
	require.NoError(t, err)
	require.Len(t, armies, 1)
	assert.Equal(t, "s1", armies[0].Attr(effects.AttrSettlement))

	gold, err := ledger.Get(context.Background(), resource.Gold)
	require.NoError(t, err)
	assert.Equal(t, 2, gold)
}

func TestArrestDissidentsRequiresUnrest(t *testing.T) {
	ledger := resource.NewMemoryLedger(nil, map[string]int{resource.Gold: 3})
	kingdom := engine.BindKingdom(realm.Kingdom{ID: "k1", ControlDC: 15}, ledger, realm.NewMemoryStore())

	result := runBuiltin(t, "arrest-dissidents", kingdom, engine.Input{Roll: &check.Roll{Total: 30, Natural: 10}})
	assert.Equal(t, engine.VerdictRequirementsNotMet, result.Verdict)
	assert.Equal(t, "There is no unrest to suppress.", result.Message)
	assert.Equal(t, 0, ledger.Batches())
}

func TestHarvestChoiceThroughCatalog(t *testing.T) {
	ledger := resource.NewMemoryLedger(nil, nil)
	kingdom := engine.BindKingdom(realm.Kingdom{ID: "k1", ControlDC: 15}, ledger, realm.NewMemoryStore())

	result := runBuiltin(t, "harvest-resources", kingdom, engine.Input{
		Roll:     &check.Roll{Total: 16, Natural: 10},
		Prompter: interaction.Scripted{"success/0/choice": interaction.Value("ore")},
	})
	assert.Equal(t, engine.VerdictOK, result.Verdict, result.Error)
	ore, err := ledger.Get(context.Background(), resource.Ore)
	require.NoError(t, err)
	assert.Equal(t, 2, ore)
}
