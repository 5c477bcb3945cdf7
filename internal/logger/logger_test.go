package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/middleware"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestInitWithWriter_JSON(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	InitWithWriter(&buf)

	Log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	Log.Warn().Msg("feed_load_failed")
	entry := lastEntry(t, &buf)
	assert.Equal(t, "feed-bff", entry["service"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "feed_load_failed", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestCtx(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	var buf bytes.Buffer
	InitWithWriter(&buf)

	Ctx(context.Background()).Info().Msg("bare")
	entry := lastEntry(t, &buf)
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "viewer_id")

	ctx := middleware.SetRequestIDForTest(context.Background(), "req-1")
	ctx = middleware.SetViewerForTest(ctx, domain.Viewer{UserID: "12"})
	Ctx(ctx).Info().Msg("scoped")
	entry = lastEntry(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "12", entry["viewer_id"])
}
