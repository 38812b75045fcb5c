package recompute_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipe-engine/internal/cache"
	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/demographic"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/logger"
	"github.com/oggyb/swipe-engine/internal/repository"
	"github.com/oggyb/swipe-engine/internal/service/accounts"
	"github.com/oggyb/swipe-engine/internal/service/recompute"
	"github.com/oggyb/swipe-engine/internal/testutil"
)

var womenIntoMen = demographic.Bucket{
	Degree:           demographic.Undergrad,
	Gender:           demographic.Female,
	SexualPreference: demographic.Male,
}

func enrollWomen(t *testing.T, env *testutil.Env, uids ...string) *accounts.Service {
	t.Helper()
	acc := accounts.NewService(env.App)
	for _, uid := range uids {
		require.NoError(t, acc.Enroll(context.Background(), accounts.Profile{
			UID:              uid,
			Gender:           demographic.GenderFemale,
			SexualPreference: []demographic.Sex{demographic.Male},
			Degree:           demographic.Undergrad,
		}))
	}
	return acc
}

func setStats(t *testing.T, env *testutil.Env, uid string, percentile float64, seen, likes int64) {
	t.Helper()
	require.NoError(t, env.App.DB.Model(&db.PopularityRecord{}).
		Where("uid = ?", uid).
		Updates(map[string]any{"percentile": percentile, "seen_count": seen, "like_count": likes}).Error)
}

func TestJob_RanksAndResetsCounters(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	enrollWomen(t, env, "u1", "u2", "u3")
	setStats(t, env, "u1", 0.9, 10, 5)
	setStats(t, env, "u2", 0.1, 10, 5)
	setStats(t, env, "u3", 0.5, 10, 5)

	report, err := recompute.NewJob(env.App).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Generation)
	assert.Equal(t, 3, report.Ranked)

	parts := repository.NewPartitionRepository(env.App.DB, 50000)
	got, err := parts.FetchBucket(ctx, womenIntoMen)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3", "u1"}, got)

	st, err := parts.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, db.PartitionState{ID: db.PartitionStateID, Generation: 1, Version: 0}, st)

	recs, err := repository.NewPopularityRepository(env.App.DB, 10).GetMany(ctx, []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	for uid, want := range map[string]float64{"u2": 1.0 / 3, "u3": 2.0 / 3, "u1": 1} {
		assert.InDelta(t, want, recs[uid].Percentile, 1e-9, uid)
		assert.Zero(t, recs[uid].SeenCount, uid)
		assert.Zero(t, recs[uid].LikeCount, uid)
	}

	var old int64
	require.NoError(t, env.App.DB.Model(&db.PartitionShard{}).Where("generation = 0").Count(&old).Error)
	assert.Zero(t, old, "previous generation is dropped")
}

func TestJob_DropsHiddenUsers(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	acc := enrollWomen(t, env, "shown", "hidden")
	require.NoError(t, acc.SetShowProfile(ctx, "hidden", false))

	_, err := recompute.NewJob(env.App).Run(ctx)
	require.NoError(t, err)

	got, err := repository.NewPartitionRepository(env.App.DB, 50000).FetchBucket(ctx, womenIntoMen)
	require.NoError(t, err)
	assert.Equal(t, []string{"shown"}, got)
}

func TestJob_EmptyRankingWritesNothing(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	_, err := recompute.NewJob(env.App).Run(ctx)
	require.ErrorIs(t, err, svcErr.ErrEmptyRebalance)

	st, err := repository.NewPartitionRepository(env.App.DB, 50000).State(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Generation)
}

func TestJob_SingletonLock(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	enrollWomen(t, env, "u1")

	held, err := env.App.RedisCache.TryLock(ctx, cache.RecomputeLockKey, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, held)

	_, err = recompute.NewJob(env.App).Run(ctx)
	require.ErrorIs(t, err, svcErr.ErrAlreadyRunning)

	require.NoError(t, held.Release(ctx))
	_, err = recompute.NewJob(env.App).Run(ctx)
	require.NoError(t, err)
	assert.False(t, env.Redis.Exists(cache.RecomputeLockKey), "lock is released after a run")
}

type countingJob struct{ calls atomic.Int32 }

func (c *countingJob) Run(context.Context) (*recompute.Report, error) {
	c.calls.Add(1)
	return &recompute.Report{}, nil
}

func TestWorker_RunsPeriodically(t *testing.T) {
	job := &countingJob{}
	w := recompute.NewWorker(job, logger.Discard(), 10*time.Millisecond, time.Second)
	w.Start()
	require.Eventually(t, func() bool { return job.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()

	after := job.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, job.calls.Load(), "no runs after Stop")
}
