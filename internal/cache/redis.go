package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oggyb/swipe-engine/internal/config"
)

// RecomputeLockKey guards the popularity recompute job across processes.
const RecomputeLockKey = "lock:popularity:recompute"

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForPercentile generates the Redis key for a user's percentile within a
// partition generation. A recompute moves to a new generation, so entries of
// the previous one are never read again and simply expire.
func (c *RedisCache) KeyForPercentile(uid string, generation int64) string {
	return fmt.Sprintf("popularity:percentile:%d:%s", generation, uid)
}

// GetPercentile returns the cached percentile; ok is false on a cache miss.
func (c *RedisCache) GetPercentile(ctx context.Context, uid string, generation int64) (p float64, ok bool, err error) {
	val, err := c.Client.Get(ctx, c.KeyForPercentile(uid, generation)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	p, err = strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, nil
	}
	return p, true, nil
}

func (c *RedisCache) SetPercentile(ctx context.Context, uid string, generation int64, p float64, ttl time.Duration) error {
	key := c.KeyForPercentile(uid, generation)
	return c.Client.Set(ctx, key, strconv.FormatFloat(p, 'g', -1, 64), ttl).Err()
}

// Lock is a held Redis lock.
type Lock struct {
	key   string
	token string
	c     *RedisCache
}

// TryLock acquires key for ttl with SET NX PX. It returns a nil Lock without
// error when someone else holds it.
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := c.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{key: key, token: token, c: c}, nil
}

// Release frees the lock if it is still ours; an expired lock that was taken
// over by another holder is left alone.
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.c.Client, []string{l.key}, l.token).Err()
}
