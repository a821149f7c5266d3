package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Level: slog.LevelInfo, Format: "json"})

	l.Debug("hidden")
	l.Info("usage recorded", "feature", "chat")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"usage recorded"`)
	assert.Contains(t, out, `"feature":"chat"`)
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	l, closer, err := Init(Config{Level: slog.LevelInfo, OutputPath: path, Format: "text"})
	require.NoError(t, err)
	l.Info("hello from file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from file")
	assert.Same(t, l, GetLogger())
}
