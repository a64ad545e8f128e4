package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a wrapper around zerolog.Logger
type Logger struct {
	zerolog.Logger
	closer io.Closer
}

// LoggerOptions contains options for creating a logger
type LoggerOptions struct {
	Level   string
	Format  string // "pretty" or "json"
	Output  io.Writer
	File    string // optional log file, always written as JSON
	Verbose bool
}

// NewLogger creates a new logger with the given options.
// When File is set, entries go to both the console output and the file.
func NewLogger(opts LoggerOptions) (*Logger, error) {
	var output io.Writer = os.Stderr
	if opts.Output != nil {
		output = opts.Output
	}

	if opts.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	var closer io.Closer
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closer = f
		output = zerolog.MultiLevelWriter(output, f)
	}

	level := parseLogLevel(opts.Level)
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: logger, closer: closer}, nil
}

// NewDefaultLogger creates a logger with default settings
func NewDefaultLogger() *Logger {
	l, _ := NewLogger(LoggerOptions{
		Level:  "info",
		Format: "pretty",
	})
	return l
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// parseLogLevel accepts the usual names case-insensitively, including
// "warning" and "critical".
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "critical", "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLogLevel reports whether parseLogLevel recognises the value
func ValidLogLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error", "critical", "fatal":
		return true
	}
	return false
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("component", component).Logger(),
	}
}

// WithRepo returns a logger with a repo field
func (l *Logger) WithRepo(repo string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("repo", repo).Logger(),
	}
}

// WithNamespace returns a logger with index and namespace fields
func (l *Logger) WithNamespace(index, namespace string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("index", index).Str("namespace", namespace).Logger(),
	}
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// SetGlobalLevel sets the global log level
func SetGlobalLevel(level string) {
	zerolog.SetGlobalLevel(parseLogLevel(level))
}
