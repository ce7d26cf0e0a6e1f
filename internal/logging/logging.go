package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	current Level = LevelInfo
	logger        = newLogger(os.Stderr, os.Getenv("LOG_FORMAT"))
)

// InitFromEnv sets the log level based on LOG_LEVEL (debug|info|warn|error)
// and the output format based on LOG_FORMAT (console|json).
func InitFromEnv() {
	SetLevel(os.Getenv("LOG_LEVEL"))
	logger = newLogger(os.Stderr, os.Getenv("LOG_FORMAT"))
}

// SetLevel parses a level name; unknown values fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		current = LevelError
	case "warn", "warning":
		current = LevelWarn
	case "debug":
		current = LevelDebug
	default:
		current = LevelInfo
	}
	zerolog.SetGlobalLevel(zerologLevel(current))
}

// SetOutput redirects log output. Used by tests and the CLI tools.
func SetOutput(w io.Writer, format string) {
	logger = newLogger(w, format)
}

func newLogger(w io.Writer, format string) zerolog.Logger {
	if strings.EqualFold(format, "json") {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func Debugf(format string, args ...interface{}) {
	if current <= LevelDebug {
		logger.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Infof(format string, args ...interface{}) {
	if current <= LevelInfo {
		logger.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Warnf(format string, args ...interface{}) {
	if current <= LevelWarn {
		logger.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Errorf(format string, args ...interface{}) {
	logger.Error().Msg(fmt.Sprintf(format, args...))
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatal().Msg(fmt.Sprintf(format, args...))
}

// Event returns a structured info event for callers that want fields
// instead of a formatted line (scan summaries, opportunities).
func Event(component string) *zerolog.Event {
	return logger.Info().Str("component", component)
}
