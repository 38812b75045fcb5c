package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/swipe-engine/internal/app"
	"github.com/oggyb/swipe-engine/internal/cache"
	"github.com/oggyb/swipe-engine/internal/config"
	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/logger"
	"github.com/oggyb/swipe-engine/internal/messaging"
	"github.com/oggyb/swipe-engine/internal/seed"
	"github.com/oggyb/swipe-engine/internal/server"
	"github.com/oggyb/swipe-engine/internal/service/matcher"
	"github.com/oggyb/swipe-engine/internal/service/recompute"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	redisCache := cache.NewRedisCache(cfg)
	defer redisCache.Close()
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	var events messaging.Publisher = messaging.Noop{}
	if cfg.NATS.URL != "" {
		nc, err := messaging.NewNATSClient(messaging.DefaultNATSConfig(cfg.NATS.URL), log)
		if err != nil {
			log.Error("failed to connect to nats", "err", err)
			os.Exit(1)
		}
		defer nc.Close()
		events = nc
	}

	appCtx := app.New(cfg, database, redisCache, log, events)

	if cfg.IsDevelopment() {
		sum, err := seed.Demo(context.Background(), appCtx, 200, 1)
		if err != nil {
			log.Error("failed to seed", "err", err)
		} else if sum.Enrolled > 0 {
			log.Info("seeded demo data", "enrolled", sum.Enrolled, "swipes", sum.Swipes, "matches", sum.Matches)
		}
	}

	job := recompute.NewJob(appCtx)
	if cfg.Recompute.Enabled {
		worker := recompute.NewWorker(job, log, cfg.Recompute.Interval, cfg.Recompute.LockTTL)
		worker.Start()
		defer worker.Stop()
	}

	grpcServer := server.NewGRPCServer(cfg, log, matcher.NewRegistrar(appCtx))
	admin := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           server.NewAdminRouter(appCtx, job),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		return server.StartGRPCServer(cfg, grpcServer)
	})
	g.Go(func() error {
		log.Info("starting admin server", "addr", cfg.Admin.Addr)
		if err := admin.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return admin.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "err", err)
	}
}
