package main

import (
	"context"
	"os"

	"github.com/oggyb/swipe-engine/internal/app"
	"github.com/oggyb/swipe-engine/internal/cache"
	"github.com/oggyb/swipe-engine/internal/config"
	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/logger"
	"github.com/oggyb/swipe-engine/internal/service/recompute"
)

// One-shot popularity recompute, for cron or manual runs.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}
	redisCache := cache.NewRedisCache(cfg)
	defer redisCache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Recompute.LockTTL)
	defer cancel()

	report, err := recompute.NewJob(app.New(cfg, database, redisCache, log, nil)).Run(ctx)
	if err != nil {
		log.Error("recompute failed", "err", err)
		os.Exit(1)
	}
	log.Info("recompute completed",
		"generation", report.Generation,
		"ranked", report.Ranked,
		"skipped", len(report.Skipped),
		"duration", report.Duration,
	)
}
