package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog.Logger writing human readable lines to stdout.
func New(service, environment, level string) zerolog.Logger {
	return NewWithWriter(os.Stdout, service, environment, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, service, environment, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}
	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", service).
		Str("environment", environment).
		Logger().
		Level(ParseLevel(level))
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
