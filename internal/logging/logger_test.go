package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/pursuit/backend/internal/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("dropped")
	logger.Warn().Str("sessionId", "s-1").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, sonic.UnmarshalString(lines[0], &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "s-1", entry["sessionId"])
	require.Equal(t, "kept", entry["message"])
	require.Contains(t, entry, "time")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)

	logger.Debug().Int("node", 4).Msg("moved")

	out := buf.String()
	require.Contains(t, out, "moved")
	require.Contains(t, out, "node=4")
	require.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	}
	for input, want := range cases {
		require.Equal(t, want, parseLevel(input), input)
	}
}
