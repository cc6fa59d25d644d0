package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(Options{Output: buf, Level: level, Format: FormatJSON}), buf
}

func TestLogger_WritesStructuredJSON(t *testing.T) {
	log, buf := newBufferLogger(LevelInfo)

	log.With(Component("ledger")).Info("points awarded",
		UserID(42), Points(20), Source("lesson"), Err(errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "points awarded", entry["message"])
	assert.Equal(t, "ledger", entry["component"])
	assert.EqualValues(t, 42, entry["user_id"])
	assert.EqualValues(t, 20, entry["points"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "timestamp")
}

func TestLogger_RespectsLevel(t *testing.T) {
	log, buf := newBufferLogger(LevelWarn)

	log.Debug("hidden")
	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	log.SetLevel(LevelDebug)
	log.Debug("now shown")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"Warn":    LevelWarn,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(17).String())
}

func TestDateField(t *testing.T) {
	log, buf := newBufferLogger(LevelDebug)
	log.Debug("streak checked", Date("day", time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "2024-03-04", entry["day"])
}
