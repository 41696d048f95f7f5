package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds logging configuration
type Config struct {
	Level  string `env:"LOG_LEVEL" yaml:"level" default:"info"`
	Format string `env:"LOG_FORMAT" yaml:"format" default:"json"`
	Output string `env:"LOG_OUTPUT" yaml:"output" default:"stdout"`
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

// Logger wraps slog.Logger with additional context methods
type Logger struct {
	*slog.Logger
}

type contextKey string

const runIDKey contextKey = "run_id"

// ContextWithRunID stores the run identifier so loggers derived with WithContext carry it.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// NewLogger creates a new structured logger from configuration
func NewLogger(cfg *Config) *Logger {
	return NewLoggerWithWriter(cfg, nil)
}

// NewLoggerWithWriter creates a logger that writes to w, ignoring cfg.Output when w is non-nil.
func NewLoggerWithWriter(cfg *Config, w io.Writer) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	writer := w
	if writer == nil {
		switch strings.ToLower(cfg.Output) {
		case "stderr":
			writer = os.Stderr
		default:
			writer = os.Stdout
		}
	}

	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("timestamp", a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		handler = slog.NewTextHandler(writer, handlerOpts)
	default:
		handler = slog.NewJSONHandler(writer, handlerOpts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithComponent adds component context to logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
	}
}

// WithContext adds the run ID to the logger when the context carries one
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		return &Logger{
			Logger: l.Logger.With("run_id", runID),
		}
	}
	return l
}

// Step logs a workflow step outcome with standard fields
func (l *Logger) Step(step string, status string, attrs ...slog.Attr) {
	args := []any{"step", step, "status", status}
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value)
	}
	if status == "failed" {
		l.Logger.Error("step finished", args...)
		return
	}
	l.Logger.Info("step finished", args...)
}

// Performance logs performance metrics
func (l *Logger) Performance(operation string, duration time.Duration, attrs ...slog.Attr) {
	args := []any{"operation", operation, "duration_ms", duration.Milliseconds()}
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value)
	}
	l.Logger.Info("performance", args...)
}

// Toast logs toast-capture events
func (l *Logger) Toast(msg string, args ...any) {
	finalArgs := []any{"subsystem", "toast"}
	finalArgs = append(finalArgs, args...)
	l.Logger.Info(msg, finalArgs...)
}

// Browser logs browser-driver events
func (l *Logger) Browser(msg string, args ...any) {
	finalArgs := []any{"subsystem", "browser"}
	finalArgs = append(finalArgs, args...)
	l.Logger.Debug(msg, finalArgs...)
}

// API logs backend API events
func (l *Logger) API(msg string, args ...any) {
	finalArgs := []any{"subsystem", "api"}
	finalArgs = append(finalArgs, args...)
	l.Logger.Info(msg, finalArgs...)
}

// Database logs database-specific events
func (l *Logger) Database(msg string, args ...any) {
	finalArgs := []any{"subsystem", "database"}
	finalArgs = append(finalArgs, args...)
	l.Logger.Debug(msg, finalArgs...)
}

var defaultLogger *Logger

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// Default returns the default logger instance
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = NewLogger(DefaultConfig())
	}
	return defaultLogger
}

// Convenience functions using default logger
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

func Performance(operation string, duration time.Duration, attrs ...slog.Attr) {
	Default().Performance(operation, duration, attrs...)
}
