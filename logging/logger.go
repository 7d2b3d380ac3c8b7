// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer RuntimeLogger with contextual
// helpers (agent, room, component) and domain specific logging helpers for
// completions, action dispatch and state composition.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the minimal logging interface for Famulus.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// RuntimeLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It should be cheap to copy via With* methods.
type RuntimeLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	agentID   string
	roomID    string
}

// LoggerConfig configures construction of a RuntimeLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	AgentID     string
	RoomID      string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout, AddSource: true, CustomAttrs: map[string]any{}}
}

// NewLogger builds a RuntimeLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *RuntimeLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &RuntimeLogger{logger: slog.New(handler), level: cfg.Level, context: map[string]any{}, component: cfg.Component, agentID: cfg.AgentID, roomID: cfg.RoomID}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *RuntimeLogger) clone() *RuntimeLogger {
	nl := *l
	nl.context = map[string]any{}
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *RuntimeLogger) WithContext(key string, value any) *RuntimeLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (composer, dispatcher, store, etc.).
func (l *RuntimeLogger) WithComponent(c string) *RuntimeLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithAgent attaches the agent identifier.
func (l *RuntimeLogger) WithAgent(agentID string) *RuntimeLogger {
	nl := l.clone()
	nl.agentID = agentID
	return nl
}

// WithRoom attaches the room identifier.
func (l *RuntimeLogger) WithRoom(roomID string) *RuntimeLogger {
	nl := l.clone()
	nl.roomID = roomID
	return nl
}

func (l *RuntimeLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+4)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.agentID != "" {
		attrs = append(attrs, slog.String("agent_id", l.agentID))
	}
	if l.roomID != "" {
		attrs = append(attrs, slog.String("room_id", l.roomID))
	}
	attrs = append(attrs, slog.Time("timestamp", time.Now()))
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *RuntimeLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	attrs := l.buildAttrs()
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Debug logs at debug level.
func (l *RuntimeLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *RuntimeLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *RuntimeLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *RuntimeLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// ErrorWithStack logs an error plus a runtime stack snapshot.
func (l *RuntimeLogger) ErrorWithStack(err error, msg string, args ...any) {
	if l.level > LogLevelError {
		return
	}
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("error", err.Error()), slog.String("error_type", fmt.Sprintf("%T", err)))
	stack := make([]byte, 4096)
	n := runtime.Stack(stack, false)
	attrs = append(attrs, slog.String("stack_trace", string(stack[:n])))
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

// LogCompletionCall records completion latency, attempt count and success.
func (l *RuntimeLogger) LogCompletionCall(model string, attempts int, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("model", model), slog.Int("attempts", attempts), slog.Duration("duration", dur), slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "Completion call completed"
	if !success {
		level = slog.LevelError
		msg = "Completion call failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogActionDispatch records the outcome of resolving and running an action.
func (l *RuntimeLogger) LogActionDispatch(requested, resolved string, dur time.Duration, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("requested_action", requested), slog.String("resolved_action", resolved), slog.Duration("duration", dur))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "Action dispatch completed"
	switch {
	case err != nil:
		level = slog.LevelError
		msg = "Action dispatch failed"
	case resolved == "":
		level = slog.LevelWarn
		msg = "Action dispatch found no match"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogStateComposition records aggregate state composition metrics.
func (l *RuntimeLogger) LogStateComposition(roomID string, messages int, dur time.Duration, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("room_id", roomID), slog.Int("recent_messages", messages), slog.Duration("duration", dur))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "State composition completed"
	if err != nil {
		level = slog.LevelError
		msg = "State composition failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// StartTimer returns a closure that logs the elapsed duration when invoked.
func (l *RuntimeLogger) StartTimer(op string) func() {
	start := time.Now()
	return func() { l.Info("Operation completed", "operation", op, "duration", time.Since(start)) }
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
