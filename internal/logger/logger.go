package logger

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New constructs a zerolog logger based on level and format configuration.
// Lambda functions log "json" so CloudWatch can index the fields.
func New(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, err
	}

	var log zerolog.Logger
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	case "console":
		log = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	default:
		return zerolog.Logger{}, errors.New("unsupported log format")
	}
	return log.Level(lvl), nil
}

// Component returns a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Boot returns the logger used before configuration is loaded. It always writes
// JSON to w at debug level.
func Boot(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("phase", "boot").Logger().Level(zerolog.DebugLevel)
}
