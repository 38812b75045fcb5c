// Package sampling holds the random pickers used to build swipe stacks:
// an alias-method weighted sampler and a truncated Gaussian index picker.
package sampling

import (
	"math/rand/v2"
	"time"
)

// Rand is the subset of *rand.Rand the pickers need.
// Tests inject a seeded source to get deterministic draws.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a time-seeded PCG source for production use.
func NewRand() *rand.Rand {
	now := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(now, now>>7|1))
}

// NewSeeded returns a deterministic source.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
