// Package logger provides structured logging for sdtank. It wraps log/slog
// and carries a per-session correlation ID and the resolving component
// through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

type contextKey int

const (
	sessionIDKey contextKey = iota
	componentKey
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
	mu            sync.RWMutex
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (json, text).
	Format string
	// Output is the writer to log to (defaults to os.Stderr).
	Output io.Writer
	// AddSource adds source file:line to log entries.
	AddSource bool
}

// Init initializes the default logger. Only the first call takes effect;
// call Reset first to reconfigure.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	once.Do(func() {
		defaultLogger = newLogger(cfg)
		slog.SetDefault(defaultLogger)
	})
}

// Reset drops the configured logger so Init can run again. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	once = sync.Once{}
	defaultLogger = nil
}

// New builds a standalone logger without touching the process default.
func New(cfg Config) *slog.Logger {
	return newLogger(cfg)
}

func newLogger(cfg Config) *slog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenFile opens path for appending log output, creating parent directories.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Default returns the configured logger, or slog.Default before Init.
func Default() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		return slog.Default()
	}
	return l
}

// WithContext returns the default logger enriched with the session ID and
// component found in ctx.
func WithContext(ctx context.Context) *slog.Logger {
	l := Default()

	if sid, ok := ctx.Value(sessionIDKey).(string); ok && sid != "" {
		l = l.With("session_id", sid)
	}
	if c, ok := ctx.Value(componentKey).(string); ok && c != "" {
		l = l.With("component", c)
	}

	return l
}

// NewSessionID returns a fresh identifier for one generation session.
func NewSessionID() string {
	return uuid.New().String()
}

// StartSession stores a new session ID in ctx and returns it.
func StartSession(ctx context.Context) (context.Context, string) {
	id := NewSessionID()
	return SetSessionID(ctx, id), id
}

func SetSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func SetComponent(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, componentKey, name)
}

func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

func GetComponent(ctx context.Context) string {
	if c, ok := ctx.Value(componentKey).(string); ok {
		return c
	}
	return ""
}

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
