package candidates

import (
	"github.com/oggyb/swipe-engine/internal/sampling"
)

// Params tunes stack generation.
type Params struct {
	WaveSize         int
	LikeWeight       float64
	CriteriaWeight   float64
	PositionVariance float64
	CriteriaVariance float64
}

// DemographicPicks is how many positions are sampled from the demographic
// arrays.
func (p Params) DemographicPicks() int {
	return int(float64(p.WaveSize) * p.CriteriaWeight * 2)
}

// CriteriaPicks is how many candidates the criteria-biased draw keeps.
func (p Params) CriteriaPicks() int {
	return p.DemographicPicks() / 2
}

// LikeLimit bounds the like group.
func (p Params) LikeLimit() int {
	return int(float64(p.WaveSize) * 1.2)
}

// pickPositions draws up to picks uids from arrays. Each draw chooses an
// array uniformly, then a position near that array's mean. Positions are
// never drawn twice per array; a uid present in several arrays is kept once.
func pickPositions(rng sampling.Rand, arrays [][]string, means []float64, picks int, variance float64) (out []string, misses int) {
	if len(arrays) == 0 {
		return nil, 0
	}
	picked := make([]map[int]struct{}, len(arrays))
	for i := range picked {
		picked[i] = map[int]struct{}{}
	}
	seen := map[string]struct{}{}

	for i := 0; i < picks; i++ {
		a := rng.IntN(len(arrays))
		idx := sampling.FreshGaussianIndex(rng, picked[a], means[a], 0, len(arrays[a])-1, variance)
		if idx == sampling.NoIndex {
			misses++
			continue
		}
		picked[a][idx] = struct{}{}
		uid := arrays[a][idx]
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out, misses
}

// pickNearEnd draws up to picks distinct entries of ordered with a Gaussian
// centred on its last index, in draw order.
func pickNearEnd(rng sampling.Rand, ordered []string, picks int, variance float64) []string {
	if len(ordered) == 0 {
		return nil
	}
	last := len(ordered) - 1
	picked := map[int]struct{}{}
	var out []string
	for i := 0; i < picks && len(picked) < len(ordered); i++ {
		idx := sampling.FreshGaussianIndex(rng, picked, float64(last), 0, last, variance)
		if idx == sampling.NoIndex {
			continue
		}
		picked[idx] = struct{}{}
		out = append(out, ordered[idx])
	}
	return out
}

// mix interleaves groups by drawing a group with the alias sampler, weighted
// by weights, and taking its next entry, until limit entries are taken or
// every group is drained. Exhausted groups drop out of the draw; when only
// zero-weight groups remain they are drawn uniformly. Entries already taken
// through another group are skipped.
func mix(rng sampling.Rand, groups [][]Candidate, weights []float64, limit int) []Candidate {
	heads := make([]int, len(groups))
	seen := map[string]struct{}{}
	var out []Candidate

	for len(out) < limit {
		live := make([]float64, len(groups))
		anyLive, anyWeight := false, false
		for g := range groups {
			if heads[g] < len(groups[g]) {
				anyLive = true
				live[g] = weights[g]
				if weights[g] > 0 {
					anyWeight = true
				}
			}
		}
		if !anyLive {
			break
		}
		if !anyWeight {
			for g := range groups {
				if heads[g] < len(groups[g]) {
					live[g] = 1
				}
			}
		}

		sampler, err := sampling.NewAliasSampler(live, rng)
		if err != nil {
			break
		}
		g := sampler.Sample()
		c := groups[g][heads[g]]
		heads[g]++
		if _, dup := seen[c.UID]; dup {
			continue
		}
		seen[c.UID] = struct{}{}
		out = append(out, c)
	}
	return out
}
