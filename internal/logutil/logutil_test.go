package logutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "info", Writer: &buf})

	Info(logger, "upload_completed", map[string]interface{}{"document": "doc-1"})
	logger.Debug().Msg("hidden")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "upload_completed", entry["message"])
	assert.Equal(t, "doc-1", entry["document"])
	assert.Contains(t, entry, "time")
}

func TestErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf})

	Error(logger, "store_failed", errors.New("disk full"), nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "disk full", entry["error"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
