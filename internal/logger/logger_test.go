package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Config{Level: "info", Format: "json", Output: buf})

	log.Info().Str("table", "posts").Msg("rows loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "rows loaded", entry["message"])
	assert.Equal(t, "posts", entry["table"])
	assert.NotEmpty(t, entry["time"])
}

func TestNewLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Config{Level: "error", Format: "json", Output: buf})

	log.Info().Msg("dropped")
	assert.Empty(t, buf.Bytes())

	log.Error().Msg("kept")
	assert.NotEmpty(t, buf.Bytes())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
}
