package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper over zerolog that keeps call sites on the
// message-plus-fields shape used throughout the handlers.
type Logger struct {
	zl zerolog.Logger
}

func NewLogger() *Logger {
	return NewLoggerWithOutput(os.Stdout)
}

// NewLoggerWithOutput routes log output to w. Tests use it to capture lines.
func NewLoggerWithOutput(w io.Writer) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.zl.Info().Fields(fields).Msg(message)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.zl.Warn().Fields(fields).Msg(message)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.zl.Error().Fields(fields).Msg(message)
}
