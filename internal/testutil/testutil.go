// Package testutil wires an AppContext over in-memory SQLite and miniredis
// for service tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/swipe-engine/internal/app"
	"github.com/oggyb/swipe-engine/internal/cache"
	"github.com/oggyb/swipe-engine/internal/config"
	"github.com/oggyb/swipe-engine/internal/db"
	"github.com/oggyb/swipe-engine/internal/logger"
	"github.com/oggyb/swipe-engine/internal/messaging"
)

// Env is an isolated set of stores for one test.
type Env struct {
	App    *app.AppContext
	Redis  *miniredis.Miniredis
	Events *messaging.Recorder
}

// NewEnv spins up an in-memory SQLite DB, applies migrations, starts a
// miniredis, and wires everything into an AppContext. Each test gets its own
// isolated DB + Redis. mutate may adjust the config before wiring.
func NewEnv(t *testing.T, mutate ...func(*config.Config)) *Env {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(dbase))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	for _, m := range mutate {
		m(cfg)
	}

	rec := &messaging.Recorder{}
	redisCache := cache.NewRedisCache(cfg)
	t.Cleanup(func() { redisCache.Close() })

	return &Env{
		App:    app.New(cfg, dbase, redisCache, logger.Discard(), rec),
		Redis:  mr,
		Events: rec,
	}
}
