package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestCheckLevelAndFormat(t *testing.T) {
	for name := range levels {
		assert.NoError(t, CheckLevel(name), "level %q", name)
	}
	assert.NoError(t, CheckLevel("DEBUG"))
	assert.Error(t, CheckLevel("chatty"))
	assert.Error(t, CheckLevel(""))

	for _, name := range formats {
		assert.NoError(t, CheckFormat(name), "format %q", name)
	}
	assert.NoError(t, CheckFormat("JSON"))
	assert.Error(t, CheckFormat("xml"))
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("import started", "import_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "import started", entry["msg"])
	assert.Equal(t, "abc", entry["import_id"])
}

func TestFromContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	FromContext(ctx).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["request_id"])
}

func TestNewContext_ReusesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json").With("import_id", "run-1")

	ctx := NewContext(context.Background(), logger)
	WithFields(ctx, "row", 7).Info("skipped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry["import_id"])
	assert.EqualValues(t, 7, entry["row"])
}

func TestLevelForStatus(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, LevelForStatus(200))
	assert.Equal(t, slog.LevelWarn, LevelForStatus(422))
	assert.Equal(t, slog.LevelError, LevelForStatus(503))
}
