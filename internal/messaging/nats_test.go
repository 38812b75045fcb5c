package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipe-engine/internal/logger"
)

func TestMatchCreatedWireFormat(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(MatchCreated{ChatID: "abc", UIDs: []string{"a", "b"}, CreatedAt: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chat_id":"abc","uids":["a","b"],"created_at":"2024-05-01T12:00:00Z"}`, string(data))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.PublishMatchCreated(context.Background(), MatchCreated{ChatID: "1"}))
	require.NoError(t, Noop{}.PublishMatchCreated(context.Background(), MatchCreated{ChatID: "2"}))

	got := r.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ChatID)
}

func TestNewNATSClient_Unreachable(t *testing.T) {
	cfg := DefaultNATSConfig("nats://127.0.0.1:1")
	_, err := NewNATSClient(cfg, logger.Discard())
	assert.Error(t, err)
}
