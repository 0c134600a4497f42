package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	config "github.com/mwantia/fieldsync/internal/config/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Debug, Parse("debug"))
	assert.Equal(t, Warn, Parse(" WARNING "))
	assert.Equal(t, Error, Parse("Error"))
	assert.Equal(t, Info, Parse(""))
	assert.Equal(t, Info, Parse("verbose"))
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("test", config.LogServerConfig{Level: "WARN"}, &buf)

	logger.Info("dropped %d", 1)
	logger.Warn("kept %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept 2")
	assert.Contains(t, out, "[test]")
}

func TestLoggerJSONNamed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerServiceWithWriter("fieldsync", config.LogServerConfig{Level: "DEBUG", JSON: true}, &buf)

	logger.Named("session").Debug("message with 100% literal")

	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "DEBUG", entry.Level)
	assert.Equal(t, "fieldsync/session", entry.Service)
	assert.Equal(t, "message with 100% literal", entry.Message)
}
