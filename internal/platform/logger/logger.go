// Package logger provides leveled logging for the simulation server.
// Every subsystem decision worth tracing goes through this.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger provides leveled logging with context.
type Logger struct {
	level       Level
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates an info-level logger on stdout, errors on stderr.
func NewLogger() *Logger {
	return newLogger(LevelInfo, os.Stdout, os.Stderr)
}

// New creates a logger from a level name and an output name ("stdout" or "stderr").
func New(level, output string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var out io.Writer
	switch output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		return nil, fmt.Errorf("unknown log output %q", output)
	}
	return newLogger(lvl, out, os.Stderr), nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return newLogger(LevelError+1, io.Discard, io.Discard)
}

// WithWriter returns a logger at level writing every severity to w.
func WithWriter(level Level, w io.Writer) *Logger {
	return newLogger(level, w, w)
}

func newLogger(level Level, out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds
	return &Logger{
		level:       level,
		debugLogger: log.New(out, "[FACTORY-DEBUG] ", flags),
		infoLogger:  log.New(out, "[FACTORY-INFO] ", flags),
		warnLogger:  log.New(out, "[FACTORY-WARN] ", flags),
		errorLogger: log.New(errOut, "[FACTORY-ERROR] ", flags),
	}
}

// Enabled reports whether messages at lvl are written.
func (l *Logger) Enabled(lvl Level) bool {
	return lvl >= l.level
}

// Debug logs verbose diagnostic messages.
func (l *Logger) Debug(msg string) {
	if l.Enabled(LevelDebug) {
		l.debugLogger.Println(msg)
	}
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	if l.Enabled(LevelInfo) {
		l.infoLogger.Println(msg)
	}
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	if l.Enabled(LevelWarn) {
		l.warnLogger.Println(msg)
	}
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	if l.Enabled(LevelError) {
		l.errorLogger.Println(msg)
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.Enabled(LevelDebug) {
		l.debugLogger.Printf(format, args...)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.Enabled(LevelInfo) {
		l.infoLogger.Printf(format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.Enabled(LevelWarn) {
		l.warnLogger.Printf(format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.Enabled(LevelError) {
		l.errorLogger.Printf(format, args...)
	}
}

// Event logs a simulation event at debug level.
func (l *Logger) Event(eventType string, actorID string, details string) {
	if l.Enabled(LevelDebug) {
		l.debugLogger.Printf("[EVENT:%s] Actor:%s | %s", eventType, actorID, details)
	}
}
