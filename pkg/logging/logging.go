package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Fields struct {
	Service    string
	TxID       string
	OrderID    string
	EventID    string
	Step       string
	Status     string
	DurationMS int64
	Message    string
	Extra      map[string]any
}

var (
	logger         = zerolog.New(os.Stdout).With().Timestamp().Logger()
	defaultService string
)

// Init configures the process logger. format "console" switches to the human
// readable writer; anything else emits JSON lines.
func Init(service, level, format string) {
	var w io.Writer = os.Stdout
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger = zerolog.New(w).With().Timestamp().Logger()
	defaultService = service
	zerolog.SetGlobalLevel(parseLevel(level))
}

// SetOutput redirects logs, mainly for tests.
func SetOutput(w io.Writer) {
	logger = logger.Output(w)
}

func Logger() *zerolog.Logger {
	return &logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func Log(fields Fields) {
	emit(logger.Info(), fields)
}

func Debug(fields Fields) {
	emit(logger.Debug(), fields)
}

func Warn(fields Fields) {
	emit(logger.Warn(), fields)
}

func Error(fields Fields, err error) {
	emit(logger.Error().Err(err), fields)
}

func emit(e *zerolog.Event, f Fields) {
	if e == nil {
		return
	}
	service := f.Service
	if service == "" {
		service = defaultService
	}
	if service != "" {
		e = e.Str("service", service)
	}
	if f.TxID != "" {
		e = e.Str("txid", f.TxID)
	}
	if f.OrderID != "" {
		e = e.Str("order_id", f.OrderID)
	}
	if f.EventID != "" {
		e = e.Str("event_id", f.EventID)
	}
	if f.Step != "" {
		e = e.Str("step", f.Step)
	}
	if f.Status != "" {
		e = e.Str("status", f.Status)
	}
	if f.DurationMS > 0 {
		e = e.Int64("duration_ms", f.DurationMS)
	}
	if len(f.Extra) > 0 {
		e = e.Fields(f.Extra)
	}
	e.Msg(f.Message)
}
