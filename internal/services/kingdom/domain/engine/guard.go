package engine

import (
	"fmt"
	"sync"

	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
)

// ErrCheckInFlight indicates a second check on a kingdom whose check is running.
var ErrCheckInFlight = apperrors.New(apperrors.CodeCheckInFlight, "a check is already in flight for this kingdom")

// flightGuard allows one check per kingdom at a time.
type flightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func (g *flightGuard) acquire(kingdomID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == nil {
		g.active = make(map[string]struct{})
	}
	if _, busy := g.active[kingdomID]; busy {
		return nil, fmt.Errorf("%w: %s", ErrCheckInFlight, kingdomID)
	}
	g.active[kingdomID] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.active, kingdomID)
		g.mu.Unlock()
	}, nil
}
