package sampling

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoWeights is returned when the weight slice is empty.
	ErrNoWeights = errors.New("sampling: no weights")
	// ErrZeroWeights is returned when every weight is zero.
	ErrZeroWeights = errors.New("sampling: weights sum to zero")
	// ErrBadWeight is returned for NaN, infinite or negative weights.
	ErrBadWeight = errors.New("sampling: weight is not a finite non-negative number")
)

// AliasSampler draws indexes 0..N-1 with probability weight[i]/sum(weights)
// in O(1) per draw, after an O(N) table build (Vose/Walker alias method).
type AliasSampler struct {
	prob  []float64
	alias []int
	rng   Rand
}

// NewAliasSampler builds the alias table for the given weights.
//
// Behavior:
//   - Weights are scaled so their mean is exactly 1.
//   - Entries above 1 (overfull) donate their surplus to entries below 1
//     (underfull); each underfull entry records the donor as its alias.
//   - Floating-point residue left once one queue empties is clamped to 1.
//
// Fails on an empty slice, any non-finite or negative weight, or a zero sum.
func NewAliasSampler(weights []float64, rng Rand) (*AliasSampler, error) {
	n := len(weights)
	if n == 0 {
		return nil, ErrNoWeights
	}

	var sum float64
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("%w: index %d", ErrBadWeight, i)
		}
		sum += w
	}
	if sum <= 0 {
		return nil, ErrZeroWeights
	}

	prob := make([]float64, n)
	alias := make([]int, n)
	var overFull, underFull []int

	scale := float64(n) / sum
	for i, w := range weights {
		prob[i] = w * scale
		alias[i] = i
		switch {
		case prob[i] > 1:
			overFull = append(overFull, i)
		case prob[i] < 1:
			underFull = append(underFull, i)
		}
	}

	for len(overFull) > 0 || len(underFull) > 0 {
		if len(overFull) == 0 || len(underFull) == 0 {
			// mean is 1, so whatever is left is rounding error
			for _, i := range overFull {
				prob[i] = 1
			}
			for _, i := range underFull {
				prob[i] = 1
			}
			break
		}

		under, over := underFull[0], overFull[0]
		underFull = underFull[1:]
		alias[under] = over
		prob[over] += prob[under] - 1

		switch {
		case prob[over] > 1:
			overFull = append(overFull[1:], over)
		case prob[over] < 1:
			overFull = overFull[1:]
			underFull = append(underFull, over)
		default:
			overFull = overFull[1:]
		}
	}

	return &AliasSampler{prob: prob, alias: alias, rng: rng}, nil
}

// Len returns the number of outcomes.
func (s *AliasSampler) Len() int { return len(s.prob) }

// Sample draws one index.
func (s *AliasSampler) Sample() int {
	i := s.rng.IntN(len(s.prob))
	if s.rng.Float64() < s.prob[i] {
		return i
	}
	return s.alias[i]
}
