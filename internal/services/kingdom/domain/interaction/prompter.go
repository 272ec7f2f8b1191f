package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoAnswer indicates a scripted prompter without an answer for a step.
var ErrNoAnswer = errors.New("no answer for interaction step")

// Request is what the external surface receives when a step suspends.
type Request struct {
	CheckID      string         `json:"check_id"`
	DefinitionID string         `json:"definition_id"`
	Phase        Phase          `json:"phase"`
	StepID       string         `json:"step_id"`
	Type         Type           `json:"type"`
	Label        string         `json:"label,omitempty"`
	Options      []string       `json:"options,omitempty"`
	Filter       string         `json:"filter,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Answer is the external surface's response.
type Answer struct {
	Value     any
	Cancelled bool
	Reason    string
}

// Value returns an answer carrying v.
func Value(v any) Answer {
	return Answer{Value: v}
}

// Cancel returns a cancelling answer.
func Cancel(reason string) Answer {
	return Answer{Cancelled: true, Reason: reason}
}

// String returns the answer value as a string.
func (a Answer) String() string {
	switch value := a.Value.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

// Prompter blocks until the external surface answers a step.
type Prompter interface {
	Prompt(ctx context.Context, req Request) (Answer, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, req Request) (Answer, error)

// Prompt calls f.
func (f PrompterFunc) Prompt(ctx context.Context, req Request) (Answer, error) {
	return f(ctx, req)
}

// CancelToken is the scripted answer that cancels a step.
const CancelToken = "cancel"

// Scripted answers steps from a fixed table keyed by step id.
type Scripted map[string]Answer

// ParseScripted builds a Scripted prompter from "step=value" pairs. The value
// "cancel" cancels the step.
func ParseScripted(pairs []string) (Scripted, error) {
	out := make(Scripted, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("answer %q must be step=value", pair)
		}
		value = strings.TrimSpace(value)
		if strings.EqualFold(value, CancelToken) {
			out[key] = Cancel("cancelled by " + key)
			continue
		}
		out[key] = Value(value)
	}
	return out, nil
}

// Prompt returns the scripted answer for the step.
func (s Scripted) Prompt(ctx context.Context, req Request) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	answer, ok := s[req.StepID]
	if !ok {
		return Answer{}, fmt.Errorf("%w: %s", ErrNoAnswer, req.StepID)
	}
	return answer, nil
}

// Channel suspends each step until Respond is called, for hosts that collect
// input asynchronously.
type Channel struct {
	requests chan Request
	answers  chan Answer
}

// NewChannel returns an unbuffered channel prompter.
func NewChannel() *Channel {
	return &Channel{requests: make(chan Request), answers: make(chan Answer)}
}

// Requests delivers suspended steps to the host.
func (c *Channel) Requests() <-chan Request {
	return c.requests
}

// Respond resumes the suspended step.
func (c *Channel) Respond(ctx context.Context, answer Answer) error {
	select {
	case c.answers <- answer:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Prompt publishes req and waits for the host to respond.
func (c *Channel) Prompt(ctx context.Context, req Request) (Answer, error) {
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	}
	select {
	case answer := <-c.answers:
		return answer, nil
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	}
}
