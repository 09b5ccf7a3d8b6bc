package logutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the level, format and destination of a logger.
type Options struct {
	Level  string
	Format string // json (default) or console
	Writer io.Writer
}

// New builds a structured logger. JSON lines carry level, message and an
// RFC3339 UTC timestamp.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(opts.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a level name into a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Error logs err with fields at error level.
func Error(logger zerolog.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error().Err(err).Fields(fields).Msg(msg)
}

// Info logs fields at info level.
func Info(logger zerolog.Logger, msg string, fields map[string]interface{}) {
	logger.Info().Fields(fields).Msg(msg)
}
