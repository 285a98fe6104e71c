package logs

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	LogJSON(LevelError, "Fan-out failed", map[string]interface{}{
		"postID": "p1",
		"error":  errors.New("boom"),
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "ERROR", entry["severity"])
	assert.Equal(t, "Fan-out failed", entry["message"])
	assert.Equal(t, "p1", entry["postID"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotEmpty(t, entry["time"])
}
