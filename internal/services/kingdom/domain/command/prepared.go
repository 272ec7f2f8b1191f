package command

import (
	"context"
	"sync"

	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/badge"
)

var (
	// ErrAlreadyCommitted indicates a second Commit call on one Prepared value.
	ErrAlreadyCommitted = apperrors.New(apperrors.CodeCommandAlreadyCommitted, "prepared command already committed")
	// ErrDiscarded indicates a Commit after the owning check finished.
	ErrDiscarded = apperrors.New(apperrors.CodeCommandDiscarded, "prepared command was discarded")
)

// CommitFunc performs the mutation captured by Prepare.
type CommitFunc func(ctx context.Context) error

type preparedState int

const (
	statePending preparedState = iota
	stateCommitted
	stateDiscarded
)

// Prepared is the describable, side-effect-free result of a prepare phase.
type Prepared struct {
	Type        Type
	Description string
	Badges      []badge.Badge

	commit CommitFunc

	mu    sync.Mutex
	state preparedState
}

// NewPrepared builds a prepared command. A nil commit means there is nothing
// to apply; committing it only marks it committed.
func NewPrepared(cmdType Type, description string, commit CommitFunc, badges ...badge.Badge) *Prepared {
	return &Prepared{
		Type:        cmdType,
		Description: description,
		Badges:      append([]badge.Badge(nil), badges...),
		commit:      commit,
	}
}

// HasEffect reports whether committing would mutate anything.
func (p *Prepared) HasEffect() bool {
	return p != nil && p.commit != nil
}

// Commit applies the prepared mutation. It may be called at most once.
func (p *Prepared) Commit(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case stateCommitted:
		return ErrAlreadyCommitted
	case stateDiscarded:
		return ErrDiscarded
	}
	p.state = stateCommitted
	if p.commit == nil {
		return nil
	}
	return p.commit(ctx)
}

// Discard drops an uncommitted command. It reports whether anything was dropped.
func (p *Prepared) Discard() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != statePending {
		return false
	}
	p.state = stateDiscarded
	p.commit = nil
	return true
}

// Committed reports whether Commit has run.
func (p *Prepared) Committed() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateCommitted
}
