package resource

import (
	"context"
	"maps"
	"sync"
)

// MemoryLedger is an in-process Ledger used by tests and dry runs.
type MemoryLedger struct {
	mu         sync.Mutex
	policies   Policies
	values     map[string]int
	shortfalls []Shortfall
	batches    int
}

// NewMemoryLedger returns a ledger seeded with initial values. Resources that
// are declared by policies but absent from initial start at their floor.
func NewMemoryLedger(policies Policies, initial map[string]int) *MemoryLedger {
	if policies == nil {
		policies = DefaultPolicies()
	}
	values := make(map[string]int, len(policies))
	for name, policy := range policies {
		values[name] = policy.Floor
	}
	for name, value := range initial {
		values[Normalize(name)] = value
	}
	return &MemoryLedger{policies: policies, values: values}
}

// Get returns the current value of one resource.
func (l *MemoryLedger) Get(ctx context.Context, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	name = Normalize(name)
	if _, ok := l.policies[name]; !ok {
		return 0, unknownResource(name)
	}
	return l.values[name], nil
}

// Snapshot returns a copy of every resource value.
func (l *MemoryLedger) Snapshot(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.values), nil
}

// ApplyBatch plans the batch against the current values and swaps the result
// in only when planning succeeds.
func (l *MemoryLedger) ApplyBatch(ctx context.Context, deltas []Delta) (BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	result, err := Plan(l.policies, l.values, deltas)
	if err != nil {
		return BatchResult{}, err
	}
	l.values = maps.Clone(result.After)
	l.shortfalls = append(l.shortfalls, result.Shortfalls...)
	l.batches++
	return result, nil
}

// Shortfalls returns every shortfall recorded so far, oldest first.
func (l *MemoryLedger) Shortfalls() []Shortfall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Shortfall(nil), l.shortfalls...)
}

// Batches returns how many batches were applied.
func (l *MemoryLedger) Batches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batches
}
