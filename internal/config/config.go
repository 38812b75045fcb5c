package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Env string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	Admin struct {
		Addr string
	}

	Auth struct {
		JWTSecret string
	}

	NATS struct {
		URL string
	}

	Matching Matching

	SwipeCap SwipeCap

	Recompute Recompute

	Partition struct {
		ShardCapacity int
	}

	Popularity struct {
		ContainerCapacity int
	}
}

// Matching tunes candidate generation.
type Matching struct {
	WaveSize         int
	LikeWeight       float64
	CriteriaWeight   float64
	PositionVariance float64
	CriteriaVariance float64
	PercentileTTL    time.Duration
}

// SwipeCap configures the per-user swipe token bucket.
type SwipeCap struct {
	Max         float64
	RatePerHour float64
	Enforce     bool
}

// Recompute schedules the popularity recompute job.
type Recompute struct {
	Enabled  bool
	Interval time.Duration
	LockTTL  time.Duration
}

// New builds the config from environment variables only.
func New() *Config {
	return build(nil)
}

// Load is New plus the optional YAML tuning file named by MATCHER_CONFIG_FILE.
// Precedence is defaults, then the file, then the environment.
func Load() (*Config, error) {
	path := strings.TrimSpace(os.Getenv("MATCHER_CONFIG_FILE"))
	if path == "" {
		return New(), nil
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}
	cfg := build(k)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(k *koanf.Koanf) *Config {
	cfg := &Config{}

	cfg.App.Env = getEnvDefault("APP_ENV", "production")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "grpc_server")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "swipe")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	cfg.Admin.Addr = getEnvDefault("ADMIN_ADDR", "127.0.0.1:9090")
	cfg.Auth.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.NATS.URL = getEnvDefault("NATS_URL", "")

	// Tuning: defaults, then file, then env
	cfg.Matching = Matching{
		WaveSize:         20,
		LikeWeight:       0.2,
		CriteriaWeight:   0.8,
		PositionVariance: 3.5,
		CriteriaVariance: 1.7,
		PercentileTTL:    time.Hour,
	}
	cfg.SwipeCap = SwipeCap{Max: 20, RatePerHour: 1}
	cfg.Recompute = Recompute{Enabled: true, Interval: 24 * time.Hour, LockTTL: 10 * time.Minute}
	cfg.Partition.ShardCapacity = 50000
	cfg.Popularity.ContainerCapacity = 2000

	if k != nil {
		overlayInt(k, "matching.wave_size", &cfg.Matching.WaveSize)
		overlayFloat(k, "matching.like_weight", &cfg.Matching.LikeWeight)
		overlayFloat(k, "matching.criteria_weight", &cfg.Matching.CriteriaWeight)
		overlayFloat(k, "matching.position_variance", &cfg.Matching.PositionVariance)
		overlayFloat(k, "matching.criteria_variance", &cfg.Matching.CriteriaVariance)
		overlayDuration(k, "matching.percentile_ttl", &cfg.Matching.PercentileTTL)
		overlayFloat(k, "swipe_cap.max", &cfg.SwipeCap.Max)
		overlayFloat(k, "swipe_cap.rate_per_hour", &cfg.SwipeCap.RatePerHour)
		overlayBool(k, "swipe_cap.enforce", &cfg.SwipeCap.Enforce)
		overlayBool(k, "recompute.enabled", &cfg.Recompute.Enabled)
		overlayDuration(k, "recompute.interval", &cfg.Recompute.Interval)
		overlayDuration(k, "recompute.lock_ttl", &cfg.Recompute.LockTTL)
		overlayInt(k, "partition.shard_capacity", &cfg.Partition.ShardCapacity)
		overlayInt(k, "popularity.container_capacity", &cfg.Popularity.ContainerCapacity)
	}

	cfg.Matching.WaveSize = getEnvInt("MATCHING_WAVE_SIZE", cfg.Matching.WaveSize)
	cfg.SwipeCap.Max = getEnvFloat("SWIPE_CAP_MAX", cfg.SwipeCap.Max)
	cfg.SwipeCap.RatePerHour = getEnvFloat("SWIPE_CAP_RATE_PER_HOUR", cfg.SwipeCap.RatePerHour)
	if v, ok := os.LookupEnv("SWIPE_CAP_ENFORCE"); ok {
		cfg.SwipeCap.Enforce = isTruthy(v)
	}
	if v, ok := os.LookupEnv("RECOMPUTE_ENABLED"); ok {
		cfg.Recompute.Enabled = isTruthy(v)
	}
	cfg.Recompute.Interval = getEnvDuration("RECOMPUTE_INTERVAL", cfg.Recompute.Interval)
	cfg.Recompute.LockTTL = getEnvDuration("RECOMPUTE_LOCK_TTL", cfg.Recompute.LockTTL)
	cfg.Partition.ShardCapacity = getEnvInt("PARTITION_SHARD_CAPACITY", cfg.Partition.ShardCapacity)
	cfg.Popularity.ContainerCapacity = getEnvInt("POPULARITY_CONTAINER_CAPACITY", cfg.Popularity.ContainerCapacity)

	return cfg
}

// IsDevelopment reports whether APP_ENV is "development".
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Env, "development")
}

// Validate rejects tuning values the engines cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Matching.WaveSize <= 0 {
		errs = append(errs, fmt.Errorf("matching.wave_size must be positive, got %d", c.Matching.WaveSize))
	}
	if c.Matching.LikeWeight < 0 || c.Matching.CriteriaWeight < 0 {
		errs = append(errs, errors.New("matching group weights must not be negative"))
	}
	if c.Matching.PositionVariance <= 0 || c.Matching.CriteriaVariance <= 0 {
		errs = append(errs, errors.New("matching variances must be positive"))
	}
	if c.SwipeCap.Max <= 0 || c.SwipeCap.RatePerHour < 0 {
		errs = append(errs, errors.New("swipe_cap.max must be positive and rate_per_hour non-negative"))
	}
	if c.Recompute.Interval <= 0 || c.Recompute.LockTTL <= 0 {
		errs = append(errs, errors.New("recompute interval and lock_ttl must be positive"))
	}
	if c.Partition.ShardCapacity <= 0 || c.Popularity.ContainerCapacity <= 0 {
		errs = append(errs, errors.New("shard and container capacities must be positive"))
	}
	return errors.Join(errs...)
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if n, err := strconv.Atoi(getEnvDefault(k, "")); err == nil {
		return n
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(getEnvDefault(k, ""), 64); err == nil {
		return f
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnvDefault(k, "")); err == nil {
		return d
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func overlayInt(k *koanf.Koanf, key string, dst *int) {
	if k.Exists(key) {
		*dst = k.Int(key)
	}
}

func overlayFloat(k *koanf.Koanf, key string, dst *float64) {
	if k.Exists(key) {
		*dst = k.Float64(key)
	}
}

func overlayBool(k *koanf.Koanf, key string, dst *bool) {
	if k.Exists(key) {
		*dst = k.Bool(key)
	}
}

func overlayDuration(k *koanf.Koanf, key string, dst *time.Duration) {
	if k.Exists(key) {
		*dst = k.Duration(key)
	}
}
