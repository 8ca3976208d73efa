package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}

func TestJSONOutputWithFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: INFO, Format: "json", Output: &buf})
	require.NoError(t, err)

	l.WithFields(F("component", "test")).Info("hello", F("n", 3), F("error", errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, float64(3), entry["n"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: WARN, Output: &buf})
	require.NoError(t, err)

	l.Info("quiet")
	assert.Zero(t, buf.Len())

	l.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestFileRotationOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "postboard.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 64), 0644))

	l, err := New(Config{Level: INFO, FilePath: path, MaxSize: 32, MaxBackups: 2})
	require.NoError(t, err)
	l.Info("fresh")
	require.NoError(t, l.Close())

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fresh")
	assert.NotContains(t, string(data), "xxxx")
}
