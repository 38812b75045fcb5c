package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/swipe-engine/internal/cache"
	"github.com/oggyb/swipe-engine/internal/config"
	"github.com/oggyb/swipe-engine/internal/messaging"
)

// AppContext holds shared dependencies (Config, DB, Redis, Logger, Events).
// It is built once per process and handed to every engine.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Events     messaging.Publisher
}

// New creates a new AppContext. A nil publisher drops events.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, events messaging.Publisher) *AppContext {
	if events == nil {
		events = messaging.Noop{}
	}
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Events:     events,
	}
}
