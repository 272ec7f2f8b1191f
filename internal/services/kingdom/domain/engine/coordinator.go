package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/louisbranch/kingdom/internal/core/check"
	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/platform/id"
	"github.com/louisbranch/kingdom/internal/random"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/definition"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/interaction"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/modifier"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/preview"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrKingdomRequired indicates a missing kingdom.
	ErrKingdomRequired = errors.New("kingdom is required")
	// ErrDifficultyRequired indicates neither the input nor the kingdom set a DC.
	ErrDifficultyRequired = errors.New("difficulty class is required")
)

const tracerName = "github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"

// Input carries the per-invocation parameters of a check.
type Input struct {
	// CheckID is generated when blank.
	CheckID string
	Skill   string
	// Difficulty falls back to the kingdom's control DC when zero.
	Difficulty int
	// Bonus is added to a rolled d20.
	Bonus int
	// Roll replaces the d20 roll when set; a zero Difficulty on it is filled in.
	Roll *check.Roll
	// Seed pins the check's random source.
	Seed     *int64
	Metadata map[string]any
	// Prompter overrides the coordinator's prompter for this run.
	Prompter interaction.Prompter
}

// Result is what a finished check reports.
type Result struct {
	CheckID            string               `json:"check_id"`
	DefinitionID       string               `json:"definition_id"`
	KingdomID          string               `json:"kingdom_id"`
	DryRun             bool                 `json:"dry_run,omitempty"`
	Verdict            Verdict              `json:"verdict"`
	Success            bool                 `json:"success"`
	Cancelled          bool                 `json:"cancelled,omitempty"`
	Message            string               `json:"message,omitempty"`
	Error              string               `json:"error,omitempty"`
	State              State                `json:"state"`
	Trail              []State              `json:"trail"`
	Degree             check.Degree         `json:"-"`
	Outcome            string               `json:"outcome,omitempty"`
	Roll               check.Roll           `json:"roll"`
	Seed               int64                `json:"seed"`
	Preview            preview.Preview      `json:"preview"`
	Batch              resource.BatchResult `json:"batch"`
	Committed          []string             `json:"committed,omitempty"`
	Warnings           []string             `json:"warnings,omitempty"`
	PostApplyCancelled bool                 `json:"post_apply_cancelled,omitempty"`
	Data               resolution.Data      `json:"data"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithPrompter sets the default prompter for interaction steps.
func WithPrompter(prompter interaction.Prompter) Option {
	return func(c *Coordinator) { c.prompter = prompter }
}

// WithTieRule sets the house rule for rolls equal to the DC.
func WithTieRule(rule check.TieRule) Option {
	return func(c *Coordinator) { c.tie = rule }
}

// WithJournal records every finished, non-dry-run check.
func WithJournal(journal Journal) Option {
	return func(c *Coordinator) { c.journal = journal }
}

// WithObserver adds an observer.
func WithObserver(observer Observer) Option {
	return func(c *Coordinator) {
		if observer != nil {
			c.observers = append(c.observers, observer)
		}
	}
}

// WithTracer sets the tracer; the default is the global provider's.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = tracer }
}

// WithClock sets the clock used for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator runs checks. It is safe for concurrent use across kingdoms and
// rejects a second concurrent check on the same kingdom.
type Coordinator struct {
	commands  *command.Registry
	modifiers *modifier.Engine
	validator definition.Validator
	prompter  interaction.Prompter
	tie       check.TieRule
	journal   Journal
	observers []Observer
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	guard flightGuard
}

// NewCoordinator returns a coordinator preparing commands from commands and
// resolving modifiers with modifiers.
func NewCoordinator(commands *command.Registry, modifiers *modifier.Engine, opts ...Option) *Coordinator {
	if commands == nil {
		commands = command.NewRegistry()
	}
	if modifiers == nil {
		modifiers = modifier.NewEngine(nil)
	}
	c := &Coordinator{
		commands:  commands,
		modifiers: modifiers,
		validator: definition.Validator{Modifiers: modifiers, Commands: commands},
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// Run executes def against kingdom through every state.
func (c *Coordinator) Run(ctx context.Context, kingdom Kingdom, def *definition.Definition, input Input) (Result, error) {
	return c.execute(ctx, kingdom, def, input, false)
}

// Preview runs def through Previewed and stops. Prepared commands are
// discarded and the ledger is never written.
func (c *Coordinator) Preview(ctx context.Context, kingdom Kingdom, def *definition.Definition, input Input) (Result, error) {
	return c.execute(ctx, kingdom, def, input, true)
}

type run struct {
	c       *Coordinator
	kingdom Kingdom
	def     *definition.Definition
	cc      *resolution.Context
	stepper *interaction.Stepper
	span    trace.Span
	logger  zerolog.Logger
	state   State
	result  Result
}

func (c *Coordinator) execute(ctx context.Context, kingdom Kingdom, def *definition.Definition, input Input, dryRun bool) (Result, error) {
	if kingdom == nil {
		return Result{}, ErrKingdomRequired
	}
	release, err := c.guard.acquire(kingdom.ID())
	if err != nil {
		return Result{}, err
	}
	defer release()

	checkID := input.CheckID
	if checkID == "" {
		checkID, err = id.NewPrefixed("chk")
		if err != nil {
			return Result{}, fmt.Errorf("allocate check id: %w", err)
		}
	}
	seed, err := random.ResolveSeed(input.Seed)
	if err != nil {
		return Result{}, fmt.Errorf("resolve seed: %w", err)
	}
	definitionID := ""
	if def != nil {
		definitionID = def.ID
	}

	ctx, span := c.tracer.Start(ctx, "kingdom.check", trace.WithAttributes(
		attribute.String("kingdom.check_id", checkID),
		attribute.String("kingdom.definition_id", definitionID),
		attribute.String("kingdom.id", kingdom.ID()),
		attribute.Bool("kingdom.dry_run", dryRun),
	))
	defer span.End()

	prompter := input.Prompter
	if prompter == nil {
		prompter = c.prompter
	}
	logger := c.logger.With().
		Str("check_id", checkID).
		Str("definition_id", definitionID).
		Str("kingdom_id", kingdom.ID()).
		Logger()
	r := &run{
		c:       c,
		kingdom: kingdom,
		def:     def,
		stepper: interaction.NewStepper(prompter, logger),
		span:    span,
		logger:  logger,
		state:   StateCreated,
		result: Result{
			CheckID:      checkID,
			DefinitionID: definitionID,
			KingdomID:    kingdom.ID(),
			DryRun:       dryRun,
			Seed:         seed,
			State:        StateCreated,
			Trail:        []State{StateCreated},
		},
	}
	started := c.now()
	err = r.drive(ctx, input, seed, dryRun)
	r.finish(ctx, err)
	if !dryRun {
		c.record(ctx, r, started)
	}
	return r.result, err
}

// drive walks the state machine. It returns only infrastructure errors;
// every other ending is encoded in the result.
func (r *run) drive(ctx context.Context, input Input, seed int64, dryRun bool) error {
	if err := r.c.validator.Validate(r.def); err != nil {
		return r.contentError(ctx, err)
	}
	def := r.def

	snapshot, err := r.kingdom.Snapshot(ctx)
	if err != nil {
		return r.internalError(ctx, fmt.Errorf("load kingdom: %w", err))
	}
	r.cc = resolution.New(resolution.Params{
		CheckID:      r.result.CheckID,
		DefinitionID: def.ID,
		Kingdom:      snapshot,
		Entities:     r.kingdom.Entities(),
		Skill:        input.Skill,
		Seed:         seed,
		Metadata:     input.Metadata,
	})

	// Created → RequirementsChecked
	if err := r.advance(ctx, StateRequirementsChecked); err != nil {
		return err
	}
	if input.Skill != "" && !def.HasSkill(input.Skill) {
		return r.notAvailable(ctx, fmt.Sprintf("%s cannot be attempted with %s", def.Name, input.Skill))
	}
	if def.Requirements != nil {
		requirement, err := def.Requirements(snapshot)
		if err != nil {
			return r.classify(ctx, err)
		}
		if !requirement.Met {
			return r.notAvailable(ctx, requirement.Reason)
		}
	}

	// RequirementsChecked → PreRoll → Rolled
	if err := r.advance(ctx, StatePreRoll); err != nil {
		return err
	}
	if done, err := r.interact(ctx, interaction.PhasePreRoll, def.StepsFor(interaction.PhasePreRoll)); done || err != nil {
		return err
	}
	roll, err := r.roll(input)
	if err != nil {
		return r.internalError(ctx, err)
	}
	degree := check.Resolve(roll, check.Options{Tie: r.c.tie})
	r.cc.SetRoll(roll, degree)
	r.result.Roll = roll
	r.result.Degree = degree
	r.result.Outcome = degree.String()
	r.span.SetAttributes(
		attribute.Int("kingdom.roll.total", roll.Total),
		attribute.Int("kingdom.roll.natural", roll.Natural),
		attribute.Int("kingdom.roll.difficulty", roll.Difficulty),
		attribute.String("kingdom.outcome", degree.String()),
	)
	if err := r.advance(ctx, StateRolled); err != nil {
		return err
	}

	// Rolled → Previewed
	outcome, ok := def.Outcome(degree)
	if !ok {
		return r.contentError(ctx, apperrors.WithMetadata(apperrors.CodeContentOutcomeMissing,
			fmt.Sprintf("definition %s has no %s outcome", def.ID, degree),
			map[string]string{"definition_id": def.ID, "outcome": degree.String()}))
	}
	resolved, err := r.c.modifiers.Resolve(degree, outcome.Modifiers, r.cc)
	if err != nil {
		return r.classify(ctx, err)
	}
	for _, spec := range outcome.Commands {
		prepared, err := r.c.commands.Prepare(ctx, spec, r.cc)
		if err != nil {
			return r.classify(ctx, err)
		}
		if prepared == nil {
			r.cc.AddWarning(fmt.Sprintf("%s: no valid target", spec.Type))
			continue
		}
		r.cc.AddPrepared(spec, prepared)
	}
	if err := r.buildPreview(ctx, degree); err != nil {
		return err
	}
	if err := r.advance(ctx, StatePreviewed); err != nil {
		return err
	}
	if dryRun {
		r.complete(ctx, VerdictOK, "preview only")
		return nil
	}

	// Previewed → PostRoll → ModifiersApplied
	if err := r.advance(ctx, StatePostRoll); err != nil {
		return err
	}
	steps := append(def.StepsFor(interaction.PhasePostRoll), choiceSteps(modifier.Pending(resolved))...)
	if done, err := r.interact(ctx, interaction.PhasePostRoll, steps); done || err != nil {
		return err
	}
	resolved, err = r.c.modifiers.Resolve(degree, outcome.Modifiers, r.cc)
	if err != nil {
		return r.classify(ctx, err)
	}
	if pending := modifier.Pending(resolved); len(pending) > 0 {
		return r.contentError(ctx, fmt.Errorf("%w: %s", modifier.ErrChoiceUnresolved, pending[0].Key))
	}
	if err := r.buildPreview(ctx, degree); err != nil {
		return err
	}
	batch, err := r.c.modifiers.Apply(ctx, r.kingdom.Ledger(), resolved)
	if err != nil {
		return r.classify(ctx, err)
	}
	r.result.Batch = batch
	if err := r.advance(ctx, StateModifiersApplied); err != nil {
		return err
	}

	// ModifiersApplied → PostApply → Executed
	if err := r.advance(ctx, StatePostApply); err != nil {
		return err
	}
	if err := r.postApply(ctx); err != nil {
		return err
	}
	message, execErr := r.executeLogic(ctx)
	r.result.Committed = committed(r.cc)
	if execErr != "" {
		r.fail(ctx, VerdictExecutionError, execErr)
		return nil
	}
	if err := r.advance(ctx, StateExecuted); err != nil {
		return err
	}

	// Executed → Completed
	r.complete(ctx, VerdictOK, message)
	return nil
}

func (r *run) roll(input Input) (check.Roll, error) {
	difficulty := input.Difficulty
	if difficulty == 0 {
		difficulty = r.cc.Kingdom().ControlDC
	}
	if input.Roll != nil {
		roll := *input.Roll
		if roll.Difficulty == 0 {
			roll.Difficulty = difficulty
		}
		if roll.Difficulty == 0 {
			return check.Roll{}, ErrDifficultyRequired
		}
		return roll, nil
	}
	if difficulty == 0 {
		return check.Roll{}, ErrDifficultyRequired
	}
	natural := r.cc.Rand().Intn(check.DefaultDieSize) + 1
	return check.Roll{
		Total:      natural + input.Bonus,
		Difficulty: difficulty,
		Natural:    natural,
		DieSize:    check.DefaultDieSize,
	}, nil
}

// interact runs one phase. done reports that the check ended (cancelled or
// failed) and err carries any infrastructure error.
func (r *run) interact(ctx context.Context, phase interaction.Phase, steps []interaction.Step) (bool, error) {
	outcome, err := r.stepper.Run(ctx, phase, steps, r.cc)
	if err != nil {
		return true, r.classify(ctx, conditionError(err))
	}
	if outcome.Cancelled {
		r.cc.Cancel(outcome.Reason)
		r.cancel(ctx, outcome.Reason)
		return true, nil
	}
	return false, nil
}

// postApply runs the post-apply steps. A cancellation here only skips the
// remaining follow-up; the applied modifiers stay.
func (r *run) postApply(ctx context.Context) error {
	outcome, err := r.stepper.Run(ctx, interaction.PhasePostApply, r.def.StepsFor(interaction.PhasePostApply), r.cc)
	if err != nil {
		r.logger.Warn().Err(err).Msg("post-apply step failed; skipping follow-up")
		r.cc.AddWarning("follow-up skipped: " + err.Error())
		r.cc.SkipPostApply(err.Error())
	} else if outcome.Cancelled {
		r.cc.SkipPostApply(outcome.Reason)
	}
	r.result.PostApplyCancelled = r.cc.PostApplyCancelled()
	return nil
}

// executeLogic runs the definition's execute function, or commits every
// prepared command when there is none. It returns the user-facing message
// and, on failure, the execution error text.
func (r *run) executeLogic(ctx context.Context) (string, string) {
	if r.def.Execute != nil {
		result, err := r.def.Execute(ctx, r.cc)
		if err != nil {
			return "", err.Error()
		}
		if !result.Success {
			if result.Error == "" {
				result.Error = "execute reported failure"
			}
			return result.Message, result.Error
		}
		return result.Message, ""
	}
	for _, entry := range r.cc.Prepared() {
		if err := entry.Prepared.Commit(ctx); err != nil {
			return "", fmt.Sprintf("commit %s: %v", entry.Prepared.Type, err)
		}
	}
	return "", ""
}

func (r *run) buildPreview(ctx context.Context, degree check.Degree) error {
	built, err := preview.Build(r.c.modifiers, r.def, degree, r.cc)
	if err != nil {
		return r.classify(ctx, err)
	}
	r.result.Preview = built
	return nil
}

func (r *run) advance(ctx context.Context, to State) error {
	from := r.state
	if !from.CanTransition(to) {
		return r.internalError(ctx, invalidTransition(from, to))
	}
	r.state = to
	r.result.State = to
	r.result.Trail = append(r.result.Trail, to)
	r.span.AddEvent("transition", trace.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
	r.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("check transition")
	transition := Transition{
		CheckID:      r.result.CheckID,
		DefinitionID: r.result.DefinitionID,
		KingdomID:    r.result.KingdomID,
		From:         from,
		To:           to,
	}
	for _, observer := range r.c.observers {
		observer.OnTransition(ctx, transition)
	}
	return nil
}

// settle moves to a terminal state without validating the edge twice.
func (r *run) settle(ctx context.Context, to State, verdict Verdict) {
	if r.state.CanTransition(to) {
		_ = r.advance(ctx, to)
	} else if !r.state.Terminal() {
		r.state = to
		r.result.State = to
		r.result.Trail = append(r.result.Trail, to)
	}
	r.result.Verdict = verdict
}

func (r *run) complete(ctx context.Context, verdict Verdict, message string) {
	r.result.Success = true
	r.result.Message = message
	r.settle(ctx, StateCompleted, verdict)
}

func (r *run) notAvailable(ctx context.Context, reason string) error {
	r.result.Success = false
	r.result.Message = reason
	r.settle(ctx, StateCompleted, VerdictRequirementsNotMet)
	return nil
}

func (r *run) cancel(ctx context.Context, reason string) {
	r.result.Success = true
	r.result.Cancelled = true
	r.result.Message = reason
	r.settle(ctx, StateCancelled, VerdictCancelled)
}

func (r *run) fail(ctx context.Context, verdict Verdict, message string) {
	r.result.Success = false
	r.result.Error = message
	r.settle(ctx, StateFailed, verdict)
}

func (r *run) contentError(ctx context.Context, err error) error {
	r.logger.Warn().Err(err).Str("code", string(apperrors.GetCode(err))).Msg("check content error")
	r.fail(ctx, VerdictContentError, err.Error())
	return nil
}

func (r *run) internalError(ctx context.Context, err error) error {
	r.fail(ctx, VerdictInternalError, err.Error())
	return err
}

// classify routes coded content errors to a contentError verdict and
// everything else to an internal failure.
func (r *run) classify(ctx context.Context, err error) error {
	if apperrors.IsContent(err) {
		return r.contentError(ctx, err)
	}
	return r.internalError(ctx, err)
}

func (r *run) finish(ctx context.Context, err error) {
	if r.cc != nil {
		if dropped := r.cc.Close(); dropped > 0 {
			r.logger.Debug().Int("discarded", dropped).Msg("discarded prepared commands")
		}
		r.result.Warnings = r.cc.Warnings()
		r.result.Data = r.cc.Data()
	}
	r.span.SetAttributes(
		attribute.String("kingdom.verdict", string(r.result.Verdict)),
		attribute.String("kingdom.state", string(r.result.State)),
	)
	event := r.logger.Info()
	switch {
	case err != nil:
		r.span.RecordError(err)
		r.span.SetStatus(otelcodes.Error, err.Error())
		event = r.logger.Error().Err(err)
	case r.result.Verdict == VerdictContentError || r.result.Verdict == VerdictExecutionError:
		r.span.SetStatus(otelcodes.Error, r.result.Error)
		event = r.logger.Warn().Str("error", r.result.Error)
	}
	event.
		Str("verdict", string(r.result.Verdict)).
		Str("state", string(r.result.State)).
		Str("outcome", r.result.Outcome).
		Msg("check finished")
	for _, observer := range r.c.observers {
		observer.OnComplete(ctx, r.result)
	}
}

func (c *Coordinator) record(ctx context.Context, r *run, started time.Time) {
	if c.journal == nil {
		return
	}
	entry := JournalEntry{Result: r.result, StartedAt: started, FinishedAt: c.now()}
	if err := c.journal.Record(ctx, entry); err != nil {
		r.logger.Error().Err(err).Msg("record check journal")
	}
}

// choiceSteps turns unresolved choice modifiers into post-roll choice steps
// whose answers land in the context's choices.
func choiceSteps(pending []modifier.Resolved) []interaction.Step {
	steps := make([]interaction.Step, 0, len(pending))
	for _, entry := range pending {
		key := entry.Key
		candidates := entry.Modifier.Candidates()
		steps = append(steps, interaction.Step{
			ID:      key,
			Type:    interaction.TypeChoice,
			Phase:   interaction.PhasePostRoll,
			Label:   fmt.Sprintf("Choose the resource for %+d", entry.Amount),
			Options: candidates,
			OnComplete: func(answer interaction.Answer, cc *resolution.Context) error {
				picked := resource.Normalize(answer.String())
				if !slices.Contains(candidates, picked) {
					return fmt.Errorf("%q is not one of %v", answer.String(), candidates)
				}
				cc.SetChoice(key, picked)
				return nil
			},
		})
	}
	return steps
}

func conditionError(err error) error {
	if apperrors.GetCode(err) != apperrors.CodeUnknown {
		return err
	}
	return apperrors.Wrap(apperrors.CodeContentExpressionInvalid, "interaction condition", err)
}

func committed(cc *resolution.Context) []string {
	var out []string
	for _, entry := range cc.Prepared() {
		if entry.Prepared.Committed() {
			out = append(out, entry.Prepared.Description)
		}
	}
	return out
}
