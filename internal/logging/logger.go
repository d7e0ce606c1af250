// Package logging provides the leveled logger used across retempo: a
// zerolog logger rendering human-readable lines on stderr (colored when the
// terminal allows it) and, optionally, JSON lines appended to a log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/backmassage/retempo/internal/config"
	"github.com/backmassage/retempo/internal/term"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// Logger wraps a zerolog.Logger with printf-style helpers. Child loggers
// created by [Logger.With] share the parent's file sink.
type Logger struct {
	zl   zerolog.Logger
	sink *fileSink
}

type fileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewLogger builds the console writer from cfg and optionally opens
// cfg.LogFile for appending. Call Close() when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    !term.Enabled(cfg.ColorMode, os.Stderr),
		TimeFormat: consoleTimeFormat,
	}

	var (
		out  io.Writer = console
		sink           = &fileSink{}
	)
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		sink.file = f
		out = zerolog.MultiLevelWriter(console, f)
	}

	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			sink.close()
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		level = parsed
	}
	if cfg.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl, sink: sink}, nil
}

// New wraps an arbitrary writer; used by tests and embedders that want raw
// JSON lines.
func New(w io.Writer) *Logger {
	return &Logger{
		zl:   zerolog.New(w).With().Timestamp().Logger(),
		sink: &fileSink{},
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), sink: &fileSink{}}
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	return l.sink.close()
}

func (s *fileSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// With returns a child logger that attaches key=value to every line.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		zl:   l.zl.With().Interface(key, value).Logger(),
		sink: l.sink,
	}
}

// Zerolog exposes the underlying logger for callers that build events
// with typed fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Success logs at INFO level, tagged ok=true.
func (l *Logger) Success(format string, args ...interface{}) {
	l.zl.Info().Bool("ok", true).Msgf(format, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Debug logs at DEBUG level; dropped unless --verbose or --log-level debug.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}
