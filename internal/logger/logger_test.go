package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeLine parses a single JSON log line.
func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "expected valid JSON log line: %s", buf.String())
	return entry
}

func TestNew_Environments(t *testing.T) {
	dev := New("development", "")
	require.NotNil(t, dev)
	assert.Equal(t, zerolog.DebugLevel, dev.Level())

	prod := New("production", "")
	require.NotNil(t, prod)
	assert.Equal(t, zerolog.InfoLevel, prod.Level())
	assert.NotNil(t, prod.GetZerolog())
}

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		level string
		want  zerolog.Level
	}{
		{name: "development default", env: "development", want: zerolog.DebugLevel},
		{name: "production default", env: "production", want: zerolog.InfoLevel},
		{name: "explicit level wins", env: "development", level: "warn", want: zerolog.WarnLevel},
		{name: "level is case insensitive", env: "production", level: "ERROR", want: zerolog.ErrorLevel},
		{name: "unknown level falls back", env: "production", level: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveLevel(tt.env, tt.level))
		})
	}
}

func TestLevels_WriteFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "test", "debug")

	log.Debug("debug message", map[string]interface{}{"spot": "A1"})
	entry := decodeLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "debug message", entry["message"])
	assert.Equal(t, "A1", entry["spot"])

	buf.Reset()
	log.Warn("warning message", map[string]interface{}{"plate": "ABC123"})
	entry = decodeLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "ABC123", entry["plate"])
}

func TestError_IncludesError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "test", "")

	log.Error("save failed", errors.New("connection refused"), map[string]interface{}{
		"operation": "save",
	})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "save", entry["operation"])
}

func TestInfoLevel_SuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "production", "")

	log.Debug("debug message", nil)
	assert.Empty(t, buf.String(), "debug should be suppressed at info level")

	log.Info("info message", nil)
	assert.True(t, strings.Contains(buf.String(), "info message"))
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "test", "")

	child := log.With(map[string]interface{}{"component": "repository"})
	child.Info("child message", nil)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "repository", entry["component"])
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "test", "")

	log.WithRequestID("req-12345").Info("request received", nil)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-12345", entry["request_id"])
}

func TestNop(t *testing.T) {
	log := Nop()

	assert.NotPanics(t, func() {
		log.Info("discarded", map[string]interface{}{"key": "value"})
		log.Error("discarded", errors.New("boom"), nil)
	})
}
