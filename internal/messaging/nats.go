// Package messaging publishes engine events over NATS for downstream
// consumers such as the notification dispatcher.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects published by the engine.
const (
	SubjectMatchCreated = "match.created"
)

// MatchCreated is emitted once per new match after the swipe registration
// that detected it has committed.
type MatchCreated struct {
	ChatID    string    `json:"chat_id"`
	UIDs      []string  `json:"uids"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher sends engine events.
type Publisher interface {
	PublishMatchCreated(ctx context.Context, ev MatchCreated) error
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns the connection settings used by the server.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Name:          "swipe-engine",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NATSClient wraps the NATS connection.
type NATSClient struct {
	conn *nats.Conn
	log  *slog.Logger
}

// NewNATSClient connects to NATS and returns a ready client. It returns an
// error if the initial connection fails.
func NewNATSClient(cfg NATSConfig, log *slog.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Info("nats connected", "url", nc.ConnectedUrl())

	return &NATSClient{conn: nc, log: log}, nil
}

// PublishMatchCreated publishes ev on SubjectMatchCreated.
func (c *NATSClient) PublishMatchCreated(_ context.Context, ev MatchCreated) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode match event: %w", err)
	}
	return c.conn.Publish(SubjectMatchCreated, data)
}

// Close drains and closes the connection.
func (c *NATSClient) Close() {
	if err := c.conn.Drain(); err != nil {
		c.log.Warn("nats drain", "err", err)
	}
}

// Noop drops every event. Used when NATS_URL is unset.
type Noop struct{}

func (Noop) PublishMatchCreated(context.Context, MatchCreated) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu      sync.Mutex
	Matches []MatchCreated
}

func (r *Recorder) PublishMatchCreated(_ context.Context, ev MatchCreated) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Matches = append(r.Matches, ev)
	return nil
}

// Events returns a copy of what was published so far.
func (r *Recorder) Events() []MatchCreated {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MatchCreated(nil), r.Matches...)
}
