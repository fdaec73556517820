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

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &event))
		events = append(events, event)
	}
	return events
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel, "run-1")

	log.Info("loader", "image loaded", map[string]interface{}{"voxels": 4})
	log.Error("writer", errors.New("disk full"), nil)

	events := decodeLines(t, &buf)
	require.Len(t, events, 2)

	assert.Equal(t, "info", events[0]["level"])
	assert.Equal(t, "loader", events[0]["component"])
	assert.Equal(t, "image loaded", events[0]["message"])
	assert.Equal(t, "run-1", events[0]["run_id"])
	assert.EqualValues(t, 4, events[0]["voxels"])

	assert.Equal(t, "error", events[1]["level"])
	assert.Equal(t, "disk full", events[1]["error"])
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel, "")

	log.Debug("loader", "hidden", nil)
	assert.Empty(t, buf.String())

	log.Warning("loader", "shown", nil)
	events := decodeLines(t, &buf)
	require.Len(t, events, 1)
	assert.NotContains(t, events[0], "run_id")
}
