package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger writes structured events tagged with the emitting component
type Logger struct {
	logger zerolog.Logger
}

// New creates a logger writing JSON events to writer. runID is attached to
// every event when non-empty.
func New(writer io.Writer, level zerolog.Level, runID string) *Logger {
	ctx := zerolog.New(writer).
		Level(level).
		With().
		Timestamp()
	if runID != "" {
		ctx = ctx.Str("run_id", runID)
	}
	return &Logger{logger: ctx.Logger()}
}

// NewConsole creates a human readable logger on stderr
func NewConsole(verbose bool, runID string) *Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return New(zerolog.ConsoleWriter{Out: os.Stderr}, level, runID)
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func (l *Logger) Info(component, message string, fields map[string]interface{}) {
	event := l.logger.Info().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (l *Logger) Debug(component, message string, fields map[string]interface{}) {
	event := l.logger.Debug().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (l *Logger) Warning(component, message string, fields map[string]interface{}) {
	event := l.logger.Warn().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (l *Logger) Error(component string, err error, fields map[string]interface{}) {
	event := l.logger.Error().Str("component", component).Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg("operation failed")
}
