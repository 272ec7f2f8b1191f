package engine

import (
	"context"
	"time"
)

// Transition is one state change of a running check.
type Transition struct {
	CheckID      string
	DefinitionID string
	KingdomID    string
	From         State
	To           State
}

// Observer is notified as checks move through the state machine.
type Observer interface {
	OnTransition(ctx context.Context, transition Transition)
	OnComplete(ctx context.Context, result Result)
}

// Journal records finished checks.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
}

// JournalEntry is the persisted summary of one finished check.
type JournalEntry struct {
	Result     Result
	StartedAt  time.Time
	FinishedAt time.Time
}
