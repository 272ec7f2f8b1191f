// Package random provides seed generation and seeded sources for checks.
//
// A check draws every random decision (dice formulas, target selection) from
// one *rand.Rand built from a single seed, so recording the seed is enough to
// replay the whole check.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ResolveSeed returns the pinned seed when present, otherwise a fresh one.
func ResolveSeed(pinned *int64) (int64, error) {
	if pinned != nil {
		return *pinned, nil
	}
	return NewSeed()
}

// NewSource returns a deterministic source for seed.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
