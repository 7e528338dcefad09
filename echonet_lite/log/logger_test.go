package log

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger_FileAndRotate(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "bridge.log")

	l, err := NewLogger(Options{Filename: filename, Level: "info"})
	require.NoError(t, err)
	defer l.Close()

	l.Debug("hidden")
	l.Info("frame dropped", "reason", "truncated")

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), "frame dropped")
	assert.Contains(t, string(data), "reason=truncated")
	assert.NotContains(t, string(data), "hidden")

	require.NoError(t, l.Rotate())
	l.Info("after rotate")

	data, err = os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after rotate")
	assert.NotContains(t, string(data), "frame dropped", "ローテーション後は新しいファイル")

	l.SetLevel(slog.LevelDebug)
	l.Debug("visible")
	data, err = os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")
}

func TestNewLogger_BadDirectory(t *testing.T) {
	_, err := NewLogger(Options{Filename: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
