package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slamb2k/devsolo/cmd/devsolo/cli/paths"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"1", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"none", levelNone},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"  info  ", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestInit_WritesJSONToSessionLogFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv(paths.BasePathEnvVar, base)
	t.Setenv(DebugEnvVar, "")
	t.Setenv(LogLevelEnvVar, "")
	t.Cleanup(resetLogger)

	require.NoError(t, Init("session-abc"))

	ctx := WithTool(context.Background(), "launch")
	Info(ctx, "pre-flight checks passed", "branch", "feature/x")
	Close()

	data, err := os.ReadFile(filepath.Join(base, paths.LogsDirName, "session-abc.log"))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "pre-flight checks passed", entry["msg"])
	assert.Equal(t, "session-abc", entry["session_id"])
	assert.Equal(t, "launch", entry["tool"])
	assert.Equal(t, "feature/x", entry["branch"])
}

func TestInit_RejectsUnsafeSessionID(t *testing.T) {
	t.Cleanup(resetLogger)

	assert.Error(t, Init(""))
	assert.Error(t, Init("../escape"))
}

func TestLevelFiltering(t *testing.T) {
	base := t.TempDir()
	t.Setenv(paths.BasePathEnvVar, base)
	t.Setenv(DebugEnvVar, "")
	t.Setenv(LogLevelEnvVar, "error")
	t.Cleanup(resetLogger)

	require.NoError(t, Init("session-filter"))
	Info(context.Background(), "too quiet to land")
	Error(context.Background(), "loud enough")
	Close()

	data, err := os.ReadFile(filepath.Join(base, paths.LogsDirName, "session-filter.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "too quiet to land")
	assert.Contains(t, string(data), "loud enough")
}

func TestDebugEnvVarWinsOverConfigGetter(t *testing.T) {
	base := t.TempDir()
	t.Setenv(paths.BasePathEnvVar, base)
	t.Setenv(DebugEnvVar, "1")
	t.Setenv(LogLevelEnvVar, "")
	SetLogLevelGetter(func() string { return "error" })
	t.Cleanup(func() {
		SetLogLevelGetter(nil)
		resetLogger()
	})

	require.NoError(t, Init("session-debug"))
	Debug(context.Background(), "visible at debug")
	Close()

	data, err := os.ReadFile(filepath.Join(base, paths.LogsDirName, "session-debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible at debug")
}

func TestContextAttrsWithoutInit(t *testing.T) {
	t.Cleanup(resetLogger)
	resetLogger()

	var buf bytes.Buffer
	mu.Lock()
	logger = createLogger(&buf, slog.LevelDebug)
	mu.Unlock()

	ctx := WithSession(context.Background(), "ctx-session")
	ctx = WithComponent(ctx, "store")
	Warn(ctx, "index rebuilt")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "ctx-session", entry["session_id"])
	assert.Equal(t, "store", entry["component"])
}
