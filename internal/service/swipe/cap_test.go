package swipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipe-engine/internal/db"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
)

func TestCapPolicy_Next(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := CapPolicy{Max: 20, RatePerHour: 1}

	tests := []struct {
		name    string
		prev    db.SwipeCap
		ok      bool
		count   int
		elapsed time.Duration
		want    float64
	}{
		{"refill and charge", db.SwipeCap{SwipesLeft: 5, LastRecordedAt: base}, true, 3, 2 * time.Hour, 4},
		{"floored at zero", db.SwipeCap{SwipesLeft: 1, LastRecordedAt: base}, true, 5, 0, 0},
		{"capped at max", db.SwipeCap{SwipesLeft: 19, LastRecordedAt: base}, true, 1, 48 * time.Hour, 20},
		{"fresh bucket", db.SwipeCap{}, false, 2, 0, 18},
		{"partial hour", db.SwipeCap{SwipesLeft: 0, LastRecordedAt: base}, true, 0, 30 * time.Minute, 0.5},
		{"clock skew does not drain", db.SwipeCap{SwipesLeft: 3, LastRecordedAt: base.Add(time.Hour)}, true, 1, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Next(tt.prev, tt.ok, "u", tt.count, base.Add(tt.elapsed))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got.SwipesLeft, 1e-9)
			assert.Equal(t, "u", got.UID)
			assert.Equal(t, base.Add(tt.elapsed), got.LastRecordedAt)
		})
	}
}

func TestCapPolicy_Enforce(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := CapPolicy{Max: 20, RatePerHour: 1, Enforce: true}
	prev := db.SwipeCap{UID: "u", SwipesLeft: 2, LastRecordedAt: base}

	_, err := policy.Next(prev, true, "u", 3, base)
	assert.ErrorIs(t, err, svcErr.ErrSwipeCapExceeded)

	// an hour of refill covers the third swipe
	got, err := policy.Next(prev, true, "u", 3, base.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0, got.SwipesLeft, 1e-9)
}
