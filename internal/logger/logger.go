// Package logger owns the process-wide slog logger and the request-scoped
// loggers handed down through contexts.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/swipe-engine/internal/config"
)

// Service is attached to every record.
const Service = "swipe-engine"

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config selects level, format and the fixed attributes of the global logger.
// A nil Output writes to stdout.
type Config struct {
	Level      string
	Format     Format
	Component  string
	Env        string
	WithSource bool
	Output     io.Writer
}

var (
	mu     sync.RWMutex
	global *slog.Logger
	active = Config{Level: "info", Format: FormatText}
)

// InitFromConfig initializes the global logger from app config.
func InitFromConfig(c *config.Config) {
	if c == nil {
		Init(nil)
		return
	}
	Init(&Config{
		Level:      c.Log.Level,
		Format:     Format(strings.ToLower(c.Log.Format)),
		Component:  c.Log.Component,
		Env:        c.App.Env,
		WithSource: c.Log.Source,
	})
}

// Init replaces the global logger. A nil c rebuilds it from the last config.
func Init(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	if c != nil {
		active = *c
	}
	global = build(active)
}

func build(c Config) *slog.Logger {
	out := c.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:     parseLevel(c.Level),
		AddSource: c.WithSource,
	}
	var handler slog.Handler
	if c.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		// short local timestamps read better in a terminal
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.DateTime))
			}
			return a
		}
		handler = slog.NewTextHandler(out, opts)
	}

	attrs := []any{"service", Service}
	if c.Env != "" {
		attrs = append(attrs, "env", c.Env)
	}
	if c.Component != "" {
		attrs = append(attrs, "component", c.Component)
	}
	return slog.New(handler).With(attrs...)
}

// L returns the global logger, building a default one on first use.
func L() *slog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = build(active)
	}
	return global
}

// With creates a child logger with additional attributes.
func With(args ...any) *slog.Logger { return L().With(args...) }

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

type ctxKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger stored by NewContext, or the
// global logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return L()
}

// ForRequest derives the logger of one gRPC call: a fresh request_id plus
// the full method name.
func ForRequest(base *slog.Logger, method string) *slog.Logger {
	if base == nil {
		base = L()
	}
	return base.With("request_id", uuid.NewString(), "method", method)
}

// WithUID adds the caller's uid to the request logger in ctx.
func WithUID(ctx context.Context, uid string) context.Context {
	return NewContext(ctx, FromContext(ctx).With("uid", uid))
}

// Discard returns a logger that drops everything. Used by tests and tools.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func parseLevel(s string) slog.Leveler {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
