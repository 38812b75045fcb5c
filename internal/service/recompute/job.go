// Package recompute recalibrates popularity percentiles and rebuilds the
// demographic partition from them.
package recompute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/swipe-engine/internal/app"
	"github.com/oggyb/swipe-engine/internal/cache"
	"github.com/oggyb/swipe-engine/internal/db"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/metrics"
	"github.com/oggyb/swipe-engine/internal/repository"
	"github.com/oggyb/swipe-engine/internal/txn"
)

// readBatch is how many popularity records are loaded per query.
const readBatch = 500

// Report summarizes a successful run.
type Report struct {
	Generation int64
	Ranked     int
	Skipped    []string
	Duration   time.Duration
}

// Job runs the popularity recompute.
type Job struct {
	appCtx     *app.AppContext
	runner     *txn.Runner
	partitions *repository.PartitionRepository
	popularity *repository.PopularityRepository
}

func NewJob(appCtx *app.AppContext) *Job {
	cfg := appCtx.Config
	return &Job{
		appCtx: appCtx,
		// a conflict means the read is stale; the next cycle starts over
		runner:     txn.New(appCtx.DB, txn.WithAttempts(1)),
		partitions: repository.NewPartitionRepository(appCtx.DB, cfg.Partition.ShardCapacity),
		popularity: repository.NewPopularityRepository(appCtx.DB, cfg.Popularity.ContainerCapacity),
	}
}

// Run executes one recompute.
//
// Steps:
//  1. Take the recompute lock; ErrAlreadyRunning if another run holds it.
//  2. Read the live partition (previous ranks) and every rankable record.
//  3. Rank them (see Rank).
//  4. In one transaction, swap in the new partition generation and write
//     percentiles and counter resets.
//
// An empty ranking aborts with ErrEmptyRebalance and a partition written to
// after step 2 aborts with ErrConflict; nothing is written in either case.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	log := j.appCtx.Logger
	start := time.Now()

	if rc := j.appCtx.RedisCache; rc != nil {
		lock, err := rc.TryLock(ctx, cache.RecomputeLockKey, j.appCtx.Config.Recompute.LockTTL)
		if err != nil {
			metrics.RecomputeRuns.WithLabelValues("error").Inc()
			return nil, err
		}
		if lock == nil {
			metrics.RecomputeRuns.WithLabelValues("skipped").Inc()
			return nil, svcErr.ErrAlreadyRunning
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("recompute lock release failed", "err", err)
			}
		}()
	}

	report, err := j.run(ctx)
	metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.RecomputeRuns.WithLabelValues("ok").Inc()
		metrics.RankedUsers.Set(float64(report.Ranked))
		report.Duration = time.Since(start)
		log.Info("popularity recompute done",
			"generation", report.Generation,
			"ranked", report.Ranked,
			"skipped", len(report.Skipped),
			"duration", report.Duration,
		)
		return report, nil
	case errors.Is(err, svcErr.ErrConflict):
		metrics.RecomputeRuns.WithLabelValues("conflict").Inc()
		log.Warn("popularity recompute lost a race, retrying next cycle", "err", err)
	case errors.Is(err, svcErr.ErrEmptyRebalance):
		metrics.RecomputeRuns.WithLabelValues("error").Inc()
		log.Warn("popularity recompute aborted", "err", err)
	default:
		metrics.RecomputeRuns.WithLabelValues("error").Inc()
		log.Error("popularity recompute failed", "err", err)
	}
	return nil, err
}

func (j *Job) run(ctx context.Context) (*Report, error) {
	state, previous, err := j.partitions.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read partition: %w", err)
	}

	var records []db.PopularityRecord
	err = j.popularity.EachRankable(ctx, readBatch, func(batch []db.PopularityRecord) error {
		records = append(records, batch...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read popularity: %w", err)
	}

	ranking := Rank(records, previous)
	for _, uid := range ranking.Skipped {
		j.appCtx.Logger.Warn("popularity record left out of ranking", "uid", uid)
	}

	var generation int64
	err = j.runner.Run(ctx, func(tx *gorm.DB) error {
		var err error
		generation, err = j.partitions.WithTx(tx).ReplaceGeneration(ctx, state, ranking.Buckets)
		if err != nil {
			return err
		}
		return j.popularity.WithTx(tx).ApplyRecompute(ctx, ranking.Updates)
	})
	if err != nil {
		return nil, err
	}
	return &Report{
		Generation: generation,
		Ranked:     len(ranking.Updates),
		Skipped:    ranking.Skipped,
	}, nil
}
