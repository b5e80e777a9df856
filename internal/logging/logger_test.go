package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestSub(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("editor").With("profile", "work")

	log.Debug().Msg("loaded")
	out := buf.String()
	assert.Contains(t, out, `"subsystem":"editor"`)
	assert.Contains(t, out, `"profile":"work"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info().Msg("quiet")
	assert.Empty(t, buf.String())

	log.Error().Msg("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tonectl.log")
	log, err := NewFile(path, "info")
	require.NoError(t, err)

	log.Info().Str("agent", "7").Msg("saved")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"agent":"7"`)
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Error().Msg("dropped")
	assert.NoError(t, log.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}
