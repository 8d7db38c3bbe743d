package logger

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sitepass/subscription-whitelist/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_WithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l := New(config.AppConfig{Env: "test", LogLevel: "debug", LogFile: path, Version: "v0"})

	require.NotNil(t, l)
	assert.True(t, l.Enabled(t.Context(), slog.LevelDebug))
	l.Info("hello")
	assert.FileExists(t, path)
}
