package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput("warn", &buf).With("ledger")

	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len(), "info should be filtered at warn level")

	logger.Warn().Str("ticker", "AAPL").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "ledger", line["component"])
	assert.Equal(t, "AAPL", line["ticker"])
	assert.Equal(t, "kept", line["message"])
	assert.Contains(t, line, "time")
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, "info", parseLevel("verbose").String())
	assert.Equal(t, "debug", parseLevel("debug").String())
}
