package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipe-engine/internal/config"
)

// captureOutput redirects stdout to a buffer during f()
func captureOutput(t *testing.T, f func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	_ = r.Close()

	return buf.String()
}

func appConfig(level, format, env string) *config.Config {
	c := &config.Config{}
	c.App.Env = env
	c.Log.Level = level
	c.Log.Format = format
	c.Log.Component = "grpc_server"
	return c
}

func TestInitFromConfig_Text(t *testing.T) {
	out := captureOutput(t, func() {
		InitFromConfig(appConfig("debug", "text", "development"))
		Info("stack generated", "size", 40)
	})

	assert.Contains(t, out, "stack generated")
	assert.Contains(t, out, "service=swipe-engine")
	assert.Contains(t, out, "env=development")
	assert.Contains(t, out, "component=grpc_server")
	assert.Contains(t, out, "size=40")
}

func TestInitFromConfig_JSON(t *testing.T) {
	out := captureOutput(t, func() {
		InitFromConfig(appConfig("info", "JSON", "production"))
		Info("cap refilled", "uid", "u1")
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &rec))
	assert.Equal(t, "cap refilled", rec["msg"])
	assert.Equal(t, Service, rec["service"])
	assert.Equal(t, "production", rec["env"])
	assert.Equal(t, "u1", rec["uid"])
}

func TestInit_Levels(t *testing.T) {
	for _, tc := range []struct {
		level   string
		debug   bool
		warn    bool
		errLine bool
	}{
		{"debug", true, true, true},
		{"", false, true, true},
		{"warning", false, true, true},
		{"ERROR", false, false, true},
		{"loud", false, true, true},
	} {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			Init(&Config{Level: tc.level, Output: &buf})
			Debug("d-line")
			Warn("w-line")
			Error("e-line")

			assert.Equal(t, tc.debug, strings.Contains(buf.String(), "d-line"))
			assert.Equal(t, tc.warn, strings.Contains(buf.String(), "w-line"))
			assert.Equal(t, tc.errLine, strings.Contains(buf.String(), "e-line"))
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: FormatJSON, Output: &buf})

	ctx := NewContext(context.Background(), ForRequest(nil, "/matcher.v1.MatcherService/RegisterSwipeStack"))
	ctx = WithUID(ctx, "alice")
	FromContext(ctx).Info("swipes registered")
	FromContext(ctx).Info("second line")
	FromContext(context.Background()).Info("outside a request")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var first, second, outside map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &outside))

	assert.Equal(t, "/matcher.v1.MatcherService/RegisterSwipeStack", first["method"])
	assert.Equal(t, "alice", first["uid"])
	assert.NotEmpty(t, first["request_id"])
	assert.Equal(t, first["request_id"], second["request_id"])

	assert.NotContains(t, outside, "request_id")
	assert.NotContains(t, outside, "uid")
	assert.Equal(t, Service, outside["service"])
}

func TestForRequest_FreshIDs(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Format: FormatJSON, Output: &buf})

	ForRequest(L(), "/m").Info("a")
	ForRequest(L(), "/m").Info("b")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var a, b map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &a))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &b))
	assert.NotEqual(t, a["request_id"], b["request_id"])
}
