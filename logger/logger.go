package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var Logger zerolog.Logger
var HttpLogger zerolog.Logger

func Init(logLevel string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.DateTime,
	}

	Logger = zerolog.New(consoleWriter).
		With().
		Timestamp().
		Logger()

	// HttpLogger initially discards; UseRequestLog enables it.
	HttpLogger = zerolog.New(io.Discard).
		With().
		Timestamp().
		Logger()

	level := parseLevel(logLevel)
	zerolog.SetGlobalLevel(level)
	Logger = Logger.Level(level)
	HttpLogger = HttpLogger.Level(level)
}

// UseRequestLog routes HTTP request logging to the given writer.
func UseRequestLog(w io.Writer) {
	HttpLogger = zerolog.New(w).
		With().
		Timestamp().
		Logger().
		Level(zerolog.GlobalLevel())
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
