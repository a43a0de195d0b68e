package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Debug("d")
		l.Infof("i %d", 1)
		assert.NoError(t, l.Close())
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestWarnCarriesCaller(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, slog.LevelInfo)
	l.Warnf("texture %q missing", "icon.bmp")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, `texture "icon.bmp" missing`, rec["msg"])
	assert.True(t, strings.HasPrefix(rec["caller"].(string), "log_test.go:"), rec["caller"])
}

func TestDebugFilteredByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, slog.LevelInfo)
	l.Debug("hidden")
	l.Debugf("hidden %d", 2)
	assert.Zero(t, buf.Len())
}

func TestFormattedLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, slog.LevelDebug)
	l.Debugf("slow frame %dms", 20)
	l.Infof("atlas %dx%d", 512, 128)
	l.Errorf("fatal: %v", "boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "fatal: boom", rec["msg"])
	assert.Contains(t, rec, "caller")
}
