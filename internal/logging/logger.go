package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanshika/pursuit/backend/internal/config"
)

// New builds a zerolog.Logger configured according to the provided logging config.
func New(cfg config.LoggingConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	var output io.Writer = out
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "text", "console":
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    !cfg.Colored,
		}
	}

	ctx := zerolog.New(output).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.IncludeCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

func parseLevel(level string) zerolog.Level {
	trimmed := strings.ToLower(strings.TrimSpace(level))
	if trimmed == "warning" {
		trimmed = "warn"
	}
	parsed, err := zerolog.ParseLevel(trimmed)
	if err != nil || trimmed == "" {
		return zerolog.InfoLevel
	}
	return parsed
}
