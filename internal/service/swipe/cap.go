package swipe

import (
	"fmt"
	"math"
	"time"

	"github.com/oggyb/swipe-engine/internal/config"
	"github.com/oggyb/swipe-engine/internal/db"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
)

// CapPolicy is the swipe token bucket: Max tokens, refilled at RatePerHour.
type CapPolicy struct {
	Max         float64
	RatePerHour float64
	Enforce     bool
}

// PolicyFromConfig reads the policy from the swipe cap config section.
func PolicyFromConfig(c config.SwipeCap) CapPolicy {
	return CapPolicy{Max: c.Max, RatePerHour: c.RatePerHour, Enforce: c.Enforce}
}

// refill is the number of tokens accrued since last.
func (p CapPolicy) refill(last, now time.Time) float64 {
	elapsed := now.Sub(last)
	if elapsed < 0 {
		elapsed = 0
	}
	return float64(elapsed.Milliseconds()) * p.RatePerHour / 3_600_000
}

func (p CapPolicy) clamp(v float64) float64 {
	return math.Min(p.Max, math.Max(0, v))
}

// Next charges count swipes against prev and returns the state to store.
// A missing prev (ok false) starts from a full bucket recorded at now.
//
// Example:
//
//	// Max 20, 1/h, 5 left, 2h elapsed, 3 swipes
//	p.Next(prev, true, "a", 3, prev.LastRecordedAt.Add(2*time.Hour)) // -> SwipesLeft 4
//
// With Enforce set, a batch larger than the refilled balance is rejected
// with ErrSwipeCapExceeded and nothing is charged.
func (p CapPolicy) Next(prev db.SwipeCap, ok bool, uid string, count int, now time.Time) (db.SwipeCap, error) {
	if !ok {
		prev = db.SwipeCap{UID: uid, SwipesLeft: p.Max, LastRecordedAt: now}
	}
	refill := p.refill(prev.LastRecordedAt, now)

	if p.Enforce {
		if available := p.clamp(prev.SwipesLeft + refill); float64(count) > available {
			return prev, fmt.Errorf("%d swipes with %.2f left: %w", count, available, svcErr.ErrSwipeCapExceeded)
		}
	}
	return db.SwipeCap{
		UID:            uid,
		SwipesLeft:     p.clamp(prev.SwipesLeft - float64(count) + refill),
		LastRecordedAt: now,
	}, nil
}
