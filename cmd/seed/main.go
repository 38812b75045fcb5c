package main

import (
	"context"
	"flag"
	"os"

	"github.com/oggyb/swipe-engine/internal/app"
	"github.com/oggyb/swipe-engine/internal/cache"
	"github.com/oggyb/swipe-engine/internal/config"
	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/logger"
	"github.com/oggyb/swipe-engine/internal/seed"
)

func main() {
	n := flag.Int("users", 200, "number of demo users")
	s := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

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

	sum, err := seed.Demo(context.Background(), app.New(cfg, database, redisCache, log, nil), *n, *s)
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}
	log.Info("seeding completed", "enrolled", sum.Enrolled, "swipes", sum.Swipes, "matches", sum.Matches)
}
