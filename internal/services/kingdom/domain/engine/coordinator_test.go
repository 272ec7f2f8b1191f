package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/kingdom/internal/core/check"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/definition"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/effects"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/interaction"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/modifier"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fixture struct {
	ledger   *resource.MemoryLedger
	entities *realm.MemoryStore
	kingdom  Kingdom
}

func newFixture(resources map[string]int, entities ...realm.Entity) fixture {
	ledger := resource.NewMemoryLedger(nil, resources)
	store := realm.NewMemoryStore(entities...)
	return fixture{
		ledger:   ledger,
		entities: store,
		kingdom:  BindKingdom(realm.Kingdom{ID: "k1", Name: "Stolen Lands", Level: 1, ControlDC: 15}, ledger, store),
	}
}

func (f fixture) snapshot(t *testing.T) map[string]int {
	t.Helper()
	values, err := f.ledger.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return values
}

func newCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	registry, err := effects.NewRegistry()
	if err != nil {
		t.Fatalf("effects registry: %v", err)
	}
	return NewCoordinator(registry, modifier.NewEngine(nil), opts...)
}

func rollOf(total int) *check.Roll {
	return &check.Roll{Total: total, Natural: 10}
}

func seed(v int64) *int64 { return &v }

func goldDefinition() *definition.Definition {
	return &definition.Definition{
		ID:       "collect-taxes",
		Name:     "Collect Taxes",
		Category: definition.CategoryAction,
		Outcomes: map[check.Degree]definition.Outcome{
			check.CriticalSuccess: {Modifiers: []modifier.Modifier{modifier.Static(resource.Gold, -2)}},
			check.Success:         {Modifiers: []modifier.Modifier{modifier.Static(resource.Gold, 1)}},
			check.Failure:         {Modifiers: []modifier.Modifier{modifier.Static(resource.Unrest, 1)}},
		},
	}
}

func TestCriticalSuccessDeductsGold(t *testing.T) {
	tests := []struct {
		name       string
		startGold  int
		wantGold   int
		wantUnrest int
	}{
		{"affordable", 5, 3, 0},
		{"shortfall becomes unrest", 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(map[string]int{resource.Gold: tt.startGold})
			result, err := newCoordinator(t).Run(context.Background(), f.kingdom, goldDefinition(), Input{
				Difficulty: 15,
				Roll:       rollOf(25),
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result.Degree != check.CriticalSuccess {
				t.Fatalf("degree = %s, want criticalSuccess", result.Degree)
			}
			if result.Verdict != VerdictOK || !result.Success || result.State != StateCompleted {
				t.Fatalf("result = %+v", result)
			}
			values := f.snapshot(t)
			if values[resource.Gold] != tt.wantGold || values[resource.Unrest] != tt.wantUnrest {
				t.Fatalf("gold=%d unrest=%d, want %d and %d", values[resource.Gold], values[resource.Unrest], tt.wantGold, tt.wantUnrest)
			}
			if !reflect.DeepEqual(result.Preview.Projected, result.Batch.Applied) {
				t.Fatalf("previewed %+v, applied %+v", result.Preview.Projected, result.Batch.Applied)
			}
			if !reflect.DeepEqual(result.Preview.Shortfalls, result.Batch.Shortfalls) {
				t.Fatalf("previewed shortfalls %+v, applied %+v", result.Preview.Shortfalls, result.Batch.Shortfalls)
			}
		})
	}
}

func TestTrailFollowsStateMachine(t *testing.T) {
	f := newFixture(map[string]int{resource.Gold: 5})
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, goldDefinition(), Input{Roll: rollOf(16)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []State{
		StateCreated, StateRequirementsChecked, StatePreRoll, StateRolled, StatePreviewed,
		StatePostRoll, StateModifiersApplied, StatePostApply, StateExecuted, StateCompleted,
	}
	if !reflect.DeepEqual(result.Trail, want) {
		t.Fatalf("trail = %v", result.Trail)
	}
	if result.Roll.Difficulty != 15 {
		t.Fatalf("difficulty = %d, want kingdom control DC", result.Roll.Difficulty)
	}
}

func diceDefinition() *definition.Definition {
	return &definition.Definition{
		ID:       "harvest-resources",
		Name:     "Harvest Resources",
		Category: definition.CategoryAction,
		Outcomes: map[check.Degree]definition.Outcome{
			check.Success: {Modifiers: []modifier.Modifier{modifier.Dice(resource.Food, "2d6")}},
			check.Failure: {},
		},
	}
}

func TestDiceModifierRollsOncePerContext(t *testing.T) {
	def := diceDefinition()
	var previews []int
	prompter := interaction.PrompterFunc(func(ctx context.Context, req interaction.Request) (interaction.Answer, error) {
		return interaction.Value("ok"), nil
	})
	def.Steps = []interaction.Step{{
		ID:    "confirm",
		Type:  interaction.TypeConfiguration,
		Phase: interaction.PhasePostRoll,
		OnComplete: func(_ interaction.Answer, cc *resolution.Context) error {
			engine := modifier.NewEngine(nil)
			outcome, _ := def.Outcome(cc.Outcome())
			for i := 0; i < 2; i++ {
				peeked, err := engine.Peek(cc.Outcome(), outcome.Modifiers, cc)
				if err != nil {
					return err
				}
				previews = append(previews, peeked[0].Amount)
			}
			return nil
		},
	}}

	f := newFixture(map[string]int{resource.Food: 0})
	result, err := newCoordinator(t, WithPrompter(prompter)).Run(context.Background(), f.kingdom, def, Input{Roll: rollOf(16), Seed: seed(9)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictOK {
		t.Fatalf("verdict = %s (%s)", result.Verdict, result.Error)
	}
	if len(previews) != 2 || previews[0] != previews[1] {
		t.Fatalf("previews = %v, want two equal amounts", previews)
	}
	if got := f.snapshot(t)[resource.Food]; got != previews[0] {
		t.Fatalf("food = %d, want previewed %d", got, previews[0])
	}
	if result.Preview.Deltas[0].Amount != previews[0] || !result.Preview.Deltas[0].Rolled {
		t.Fatalf("result preview = %+v", result.Preview.Deltas)
	}
}

func TestPreviewIsDryRunAndReproducible(t *testing.T) {
	f := newFixture(map[string]int{resource.Food: 0})
	coordinator := newCoordinator(t)
	input := Input{Roll: rollOf(16), Seed: seed(21)}

	first, err := coordinator.Preview(context.Background(), f.kingdom, diceDefinition(), input)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	second, err := coordinator.Preview(context.Background(), f.kingdom, diceDefinition(), input)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if first.Preview.Deltas[0].Amount != second.Preview.Deltas[0].Amount {
		t.Fatalf("previews differ: %d vs %d", first.Preview.Deltas[0].Amount, second.Preview.Deltas[0].Amount)
	}
	if f.ledger.Batches() != 0 {
		t.Fatal("preview wrote the ledger")
	}
	if first.State != StateCompleted || first.Trail[len(first.Trail)-2] != StatePreviewed {
		t.Fatalf("dry run trail = %v", first.Trail)
	}

	result, err := coordinator.Run(context.Background(), f.kingdom, diceDefinition(), input)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := f.snapshot(t)[resource.Food]; got != first.Preview.Deltas[0].Amount {
		t.Fatalf("applied %d, previewed %d", got, first.Preview.Deltas[0].Amount)
	}
	if result.Seed != 21 {
		t.Fatalf("seed = %d", result.Seed)
	}
}

func interactiveDefinition() *definition.Definition {
	def := goldDefinition()
	def.Steps = []interaction.Step{
		{ID: "settlement", Type: interaction.TypeEntitySelection, Phase: interaction.PhasePreRoll},
		{ID: "confirm", Type: interaction.TypeConfiguration, Phase: interaction.PhasePostRoll},
		{ID: "follow-up", Type: interaction.TypeChoice, Phase: interaction.PhasePostApply, Options: []string{"yes", "no"}},
		{ID: "after-follow-up", Type: interaction.TypeDice, Phase: interaction.PhasePostApply},
	}
	return def
}

func TestCancelBeforeApplyLeavesLedgerUntouched(t *testing.T) {
	for _, step := range []string{"settlement", "confirm"} {
		t.Run(step, func(t *testing.T) {
			f := newFixture(map[string]int{resource.Gold: 5, resource.Unrest: 2})
			before := f.snapshot(t)
			answers := interaction.Scripted{
				"settlement": interaction.Value("s1"),
				"confirm":    interaction.Value("yes"),
			}
			answers[step] = interaction.Cancel("player closed the dialog")

			result, err := newCoordinator(t).Run(context.Background(), f.kingdom, interactiveDefinition(), Input{
				Roll:     rollOf(30),
				Prompter: answers,
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !result.Success || !result.Cancelled || result.Verdict != VerdictCancelled || result.State != StateCancelled {
				t.Fatalf("result = %+v", result)
			}
			if after := f.snapshot(t); !reflect.DeepEqual(before, after) {
				t.Fatalf("ledger changed: %v -> %v", before, after)
			}
			if f.ledger.Batches() != 0 {
				t.Fatal("ledger batch applied after cancel")
			}
		})
	}
}

func TestHostCancelDuringPromptEndsCancelled(t *testing.T) {
	f := newFixture(map[string]int{resource.Gold: 5, resource.Unrest: 2})
	before := f.snapshot(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prompter := interaction.PrompterFunc(func(ctx context.Context, req interaction.Request) (interaction.Answer, error) {
		cancel()
		return interaction.Answer{}, ctx.Err()
	})

	result, err := newCoordinator(t).Run(ctx, f.kingdom, interactiveDefinition(), Input{
		Roll:     rollOf(30),
		Prompter: prompter,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Cancelled || result.Verdict != VerdictCancelled || result.State != StateCancelled {
		t.Fatalf("result = %+v", result)
	}
	if after := f.snapshot(t); !reflect.DeepEqual(before, after) {
		t.Fatalf("ledger changed: %v -> %v", before, after)
	}
}

func TestPostApplyCancelKeepsAppliedModifiers(t *testing.T) {
	f := newFixture(map[string]int{resource.Gold: 5})
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, interactiveDefinition(), Input{
		Roll: rollOf(16),
		Prompter: interaction.Scripted{
			"settlement":      interaction.Value("s1"),
			"confirm":         interaction.Value("yes"),
			"follow-up":       interaction.Cancel("not now"),
			"after-follow-up": interaction.Value("unreached"),
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictOK || result.Cancelled || !result.PostApplyCancelled {
		t.Fatalf("result = %+v", result)
	}
	if got := f.snapshot(t)[resource.Gold]; got != 6 {
		t.Fatalf("gold = %d, want 6", got)
	}
}

func TestRequirementsNotMet(t *testing.T) {
	def := goldDefinition()
	def.Requirements = func(k realm.Kingdom) (definition.Requirement, error) {
		if k.Resource(resource.Gold) < 10 {
			return definition.Unmet("the treasury is too small"), nil
		}
		return definition.Met(), nil
	}
	f := newFixture(map[string]int{resource.Gold: 5})
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, def, Input{Roll: rollOf(30)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictRequirementsNotMet || result.Success || result.Message != "the treasury is too small" {
		t.Fatalf("result = %+v", result)
	}
	if f.ledger.Batches() != 0 {
		t.Fatal("ledger written")
	}
}

func TestSkillOutsideOptionsIsNotAvailable(t *testing.T) {
	def := goldDefinition()
	def.Skills = []string{"trade"}
	f := newFixture(nil)
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, def, Input{Skill: "warfare", Roll: rollOf(30)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictRequirementsNotMet {
		t.Fatalf("verdict = %s", result.Verdict)
	}
}

func TestContentErrorsNeverTouchLedger(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*definition.Definition)
	}{
		{"malformed dice formula", func(d *definition.Definition) {
			d.Outcomes[check.Success] = definition.Outcome{Modifiers: []modifier.Modifier{
				modifier.Static(resource.Gold, 1),
				modifier.Dice(resource.Food, "2d"),
			}}
		}},
		{"unknown resource", func(d *definition.Definition) {
			d.Outcomes[check.Success] = definition.Outcome{Modifiers: []modifier.Modifier{
				modifier.Static(resource.Gold, 1),
				modifier.Static("mana", 1),
			}}
		}},
		{"unregistered command", func(d *definition.Definition) {
			d.Outcomes[check.Success] = definition.Outcome{
				Modifiers: []modifier.Modifier{modifier.Static(resource.Gold, 1)},
				Commands:  []command.Spec{{Type: "castle.teleport"}},
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := goldDefinition()
			tt.mutate(def)
			f := newFixture(map[string]int{resource.Gold: 5})
			result, err := newCoordinator(t).Run(context.Background(), f.kingdom, def, Input{Roll: rollOf(16)})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result.Verdict != VerdictContentError || result.State != StateFailed || result.Error == "" {
				t.Fatalf("result = %+v", result)
			}
			if f.ledger.Batches() != 0 {
				t.Fatal("ledger written despite content error")
			}
		})
	}
}

func TestExecutionErrorKeepsAppliedModifiers(t *testing.T) {
	def := goldDefinition()
	def.Execute = func(ctx context.Context, cc *resolution.Context) (definition.ExecuteResult, error) {
		return definition.ExecuteResult{Success: false, Error: "the tax collectors deserted"}, nil
	}
	f := newFixture(map[string]int{resource.Gold: 5})
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, def, Input{Roll: rollOf(16)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictExecutionError || result.Error != "the tax collectors deserted" || result.Success {
		t.Fatalf("result = %+v", result)
	}
	if got := f.snapshot(t)[resource.Gold]; got != 6 {
		t.Fatalf("gold = %d, want 6", got)
	}
}

func TestDefaultExecuteCommitsPreparedCommands(t *testing.T) {
	def := goldDefinition()
	def.Outcomes[check.Success] = definition.Outcome{
		Commands: []command.Spec{{Type: effects.TypeStructureDamage}},
	}
	f := newFixture(nil, realm.Entity{ID: "st1", Kind: realm.KindStructure, Name: "Granary"})
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, def, Input{Roll: rollOf(16), Seed: seed(1)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictOK || len(result.Committed) != 1 {
		t.Fatalf("result = %+v", result)
	}
	granary, _ := f.entities.Entity(context.Background(), "st1")
	if granary.Attr(effects.AttrDamaged) != "true" {
		t.Fatal("structure not damaged")
	}
	if len(result.Preview.Commands) != 1 || result.Preview.Commands[0].Description != "Damage Granary" {
		t.Fatalf("preview commands = %+v", result.Preview.Commands)
	}
}

func TestNilPrepareProducesNoChanges(t *testing.T) {
	def := goldDefinition()
	def.Outcomes[check.Success] = definition.Outcome{
		Commands: []command.Spec{{Type: effects.TypeStructureDamage}},
	}
	f := newFixture(map[string]int{resource.Gold: 5})
	before := f.snapshot(t)
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, def, Input{Roll: rollOf(16)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictOK || len(result.Committed) != 0 || len(result.Warnings) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if after := f.snapshot(t); !reflect.DeepEqual(before, after) {
		t.Fatalf("ledger changed: %v -> %v", before, after)
	}
	if entities, _ := f.entities.Entities(context.Background(), ""); len(entities) != 0 {
		t.Fatalf("entities created: %+v", entities)
	}
}

func TestCustomExecuteSkippingCommitDiscardsCommands(t *testing.T) {
	def := goldDefinition()
	def.Outcomes[check.Success] = definition.Outcome{
		Commands: []command.Spec{{Type: effects.TypeArmyRecruit, Params: command.Params{"name": "Militia"}}},
	}
	var kept *command.Prepared
	def.Execute = func(ctx context.Context, cc *resolution.Context) (definition.ExecuteResult, error) {
		kept = cc.Prepared()[0].Prepared
		return definition.ExecuteResult{Success: true, Message: "the recruits went home"}, nil
	}
	f := newFixture(nil)
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, def, Input{Roll: rollOf(16)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Message != "the recruits went home" || len(result.Committed) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if err := kept.Commit(context.Background()); !errors.Is(err, command.ErrDiscarded) {
		t.Fatalf("late Commit() error = %v, want ErrDiscarded", err)
	}
	if armies, _ := f.entities.Entities(context.Background(), realm.KindArmy); len(armies) != 0 {
		t.Fatalf("armies = %+v", armies)
	}
}

func TestChoiceModifierPromptsAfterRoll(t *testing.T) {
	def := goldDefinition()
	def.Outcomes[check.Success] = definition.Outcome{
		Modifiers: []modifier.Modifier{modifier.Choice(2, resource.Lumber, resource.Stone)},
	}
	f := newFixture(nil)
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, def, Input{
		Roll:     rollOf(16),
		Prompter: interaction.Scripted{"success/0/choice": interaction.Value("Stone")},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictOK {
		t.Fatalf("result = %+v", result)
	}
	values := f.snapshot(t)
	if values[resource.Stone] != 2 || values[resource.Lumber] != 0 {
		t.Fatalf("values = %v", values)
	}
}

func TestChoiceOutsideCandidatesCancels(t *testing.T) {
	def := goldDefinition()
	def.Outcomes[check.Success] = definition.Outcome{
		Modifiers: []modifier.Modifier{modifier.Choice(2, resource.Lumber, resource.Stone)},
	}
	f := newFixture(nil)
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, def, Input{
		Roll:     rollOf(16),
		Prompter: interaction.Scripted{"success/0/choice": interaction.Value("gold")},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictCancelled || f.ledger.Batches() != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestSecondCheckOnSameKingdomIsRejected(t *testing.T) {
	channel := interaction.NewChannel()
	def := interactiveDefinition()
	f := newFixture(map[string]int{resource.Gold: 5})
	coordinator := newCoordinator(t, WithPrompter(channel))

	ctx := context.Background()
	done := make(chan Result, 1)
	go func() {
		result, _ := coordinator.Run(ctx, f.kingdom, def, Input{Roll: rollOf(16)})
		done <- result
	}()
	req := <-channel.Requests()
	if req.StepID != "settlement" {
		t.Fatalf("first request = %q", req.StepID)
	}

	if _, err := coordinator.Run(ctx, f.kingdom, goldDefinition(), Input{Roll: rollOf(16)}); !errors.Is(err, ErrCheckInFlight) {
		t.Fatalf("concurrent Run() error = %v, want ErrCheckInFlight", err)
	}
	other := newFixture(nil)
	other.kingdom = BindKingdom(realm.Kingdom{ID: "k2", ControlDC: 15}, other.ledger, other.entities)
	if _, err := coordinator.Run(ctx, other.kingdom, goldDefinition(), Input{Roll: rollOf(16)}); err != nil {
		t.Fatalf("other kingdom Run() error = %v", err)
	}

	if err := channel.Respond(ctx, interaction.Cancel("stop")); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if result := <-done; result.Verdict != VerdictCancelled {
		t.Fatalf("first result = %+v", result)
	}
	if _, err := coordinator.Run(ctx, f.kingdom, goldDefinition(), Input{Roll: rollOf(16)}); err != nil {
		t.Fatalf("Run() after release error = %v", err)
	}
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []Transition
	results     []Result
}

func (o *recordingObserver) OnTransition(_ context.Context, transition Transition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition)
}

func (o *recordingObserver) OnComplete(_ context.Context, result Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

type memoryJournal struct {
	entries []JournalEntry
}

func (j *memoryJournal) Record(_ context.Context, entry JournalEntry) error {
	j.entries = append(j.entries, entry)
	return nil
}

func TestObserverJournalAndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	observer := &recordingObserver{}
	journal := &memoryJournal{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	coordinator := newCoordinator(t,
		WithObserver(observer),
		WithJournal(journal),
		WithTracer(provider.Tracer("test")),
		WithClock(func() time.Time { return now }),
	)
	f := newFixture(map[string]int{resource.Gold: 5})
	result, err := coordinator.Run(context.Background(), f.kingdom, goldDefinition(), Input{CheckID: "chk_fixed", Roll: rollOf(16)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(observer.transitions) != len(result.Trail)-1 {
		t.Fatalf("transitions = %d, trail = %d", len(observer.transitions), len(result.Trail))
	}
	if len(observer.results) != 1 || observer.results[0].CheckID != "chk_fixed" {
		t.Fatalf("results = %+v", observer.results)
	}
	if len(journal.entries) != 1 || !journal.entries[0].FinishedAt.Equal(now) {
		t.Fatalf("journal = %+v", journal.entries)
	}

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "kingdom.check" {
		t.Fatalf("spans = %v", spans)
	}
	if got := len(spans[0].Events()); got != len(result.Trail)-1 {
		t.Fatalf("span events = %d, want %d", got, len(result.Trail)-1)
	}

	if _, err := coordinator.Preview(context.Background(), f.kingdom, goldDefinition(), Input{Roll: rollOf(16)}); err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(journal.entries) != 1 {
		t.Fatal("dry run recorded in journal")
	}
}

func TestMissingDifficultyIsInternalError(t *testing.T) {
	ledger := resource.NewMemoryLedger(nil, nil)
	kingdom := BindKingdom(realm.Kingdom{ID: "k1"}, ledger, realm.NewMemoryStore())
	result, err := newCoordinator(t).Run(context.Background(), kingdom, goldDefinition(), Input{})
	if !errors.Is(err, ErrDifficultyRequired) {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Verdict != VerdictInternalError || result.State != StateFailed {
		t.Fatalf("result = %+v", result)
	}
}

func TestRolledCheckUsesBonus(t *testing.T) {
	f := newFixture(map[string]int{resource.Gold: 5})
	result, err := newCoordinator(t).Run(context.Background(), f.kingdom, goldDefinition(), Input{Bonus: 4, Seed: seed(3)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Roll.Natural < 1 || result.Roll.Natural > 20 || result.Roll.Total != result.Roll.Natural+4 {
		t.Fatalf("roll = %+v", result.Roll)
	}
}

func TestStateTransitions(t *testing.T) {
	if !StatePreRoll.CanTransition(StateCancelled) || !StatePostRoll.CanTransition(StateCancelled) {
		t.Fatal("interactive states before apply must allow cancellation")
	}
	for _, state := range []State{StateModifiersApplied, StatePostApply, StateExecuted} {
		if state.CanTransition(StateCancelled) {
			t.Fatalf("%s must not allow cancellation", state)
		}
	}
	if StateCompleted.CanTransition(StateFailed) || !StateCompleted.Terminal() {
		t.Fatal("completed must be terminal")
	}
}
