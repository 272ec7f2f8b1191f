package interaction

import (
	"context"
	"fmt"

	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
	"github.com/rs/zerolog"
)

// Outcome summarizes one phase run.
type Outcome struct {
	Ran       []string
	Skipped   []string
	Cancelled bool
	// StepID names the step that cancelled.
	StepID string
	Reason string
}

// Stepper runs interaction steps against a Prompter.
type Stepper struct {
	prompter Prompter
	logger   zerolog.Logger
}

// NewStepper returns a stepper. A nil prompter cancels every step it reaches.
func NewStepper(prompter Prompter, logger zerolog.Logger) *Stepper {
	return &Stepper{prompter: prompter, logger: logger}
}

// Run executes the steps of phase in order. A cancel answer or a prompter
// failure stops the phase and is reported in Outcome, not as an error;
// condition errors are content errors and are returned.
func (s *Stepper) Run(ctx context.Context, phase Phase, steps []Step, cc *resolution.Context) (Outcome, error) {
	var outcome Outcome
	for _, step := range InPhase(steps, phase) {
		if step.Condition != nil {
			ok, err := step.Condition(cc)
			if err != nil {
				return outcome, fmt.Errorf("step %s condition: %w", step.ID, err)
			}
			if !ok {
				outcome.Skipped = append(outcome.Skipped, step.ID)
				continue
			}
		}

		answer, err := s.prompt(ctx, phase, step, cc)
		if err != nil {
			s.logger.Warn().Err(err).Str("step", step.ID).Str("phase", string(phase)).Msg("interaction step failed")
			return cancelled(outcome, step.ID, err.Error()), nil
		}
		if answer.Cancelled {
			reason := answer.Reason
			if reason == "" {
				reason = "cancelled at " + step.ID
			}
			return cancelled(outcome, step.ID, reason), nil
		}

		cc.SetMetadata(step.ID, answer.Value)
		if step.OnComplete != nil {
			if err := step.OnComplete(answer, cc); err != nil {
				s.logger.Warn().Err(err).Str("step", step.ID).Msg("interaction step rejected answer")
				return cancelled(outcome, step.ID, err.Error()), nil
			}
		}
		outcome.Ran = append(outcome.Ran, step.ID)
		s.logger.Debug().Str("step", step.ID).Str("phase", string(phase)).Msg("interaction step answered")
	}
	return outcome, nil
}

func (s *Stepper) prompt(ctx context.Context, phase Phase, step Step, cc *resolution.Context) (Answer, error) {
	if s.prompter == nil {
		return Answer{}, fmt.Errorf("%w: %s", ErrNoAnswer, step.ID)
	}
	return s.prompter.Prompt(ctx, Request{
		CheckID:      cc.CheckID(),
		DefinitionID: cc.DefinitionID(),
		Phase:        phase,
		StepID:       step.ID,
		Type:         step.Type,
		Label:        step.Label,
		Options:      append([]string(nil), step.Options...),
		Filter:       step.Filter,
		Metadata:     cc.MetadataMap(),
	})
}

func cancelled(outcome Outcome, stepID, reason string) Outcome {
	outcome.Cancelled = true
	outcome.StepID = stepID
	outcome.Reason = reason
	return outcome
}
