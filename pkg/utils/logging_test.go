package utils

import (
    "os"
    "path/filepath"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
    assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
    assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
    assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
    assert.Equal(t, zapcore.InfoLevel, parseLevel("loud"))
}

func TestNewLoggerWritesFile(t *testing.T) {
    path := filepath.Join(t.TempDir(), "logs", "app.log")
    l := NewLogger("info", path)
    l.Info("hello")
    _ = l.Sync()

    b, err := os.ReadFile(path)
    require.NoError(t, err)
    assert.Contains(t, string(b), `"msg":"hello"`)
}
