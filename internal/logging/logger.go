// Package logging provides the leveled logger shared by the chromasim
// binaries. *Logger satisfies tissue.Logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Level represents the logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string log level (case-insensitive). Unknown
// levels fall back to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging functionality
type Logger struct {
	level Level
	out   *log.Logger
}

// NewLogger creates a logger writing to the standard log output.
func NewLogger(level string) *Logger {
	return &Logger{
		level: ParseLevel(level),
		out:   log.Default(),
	}
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(level string, w io.Writer) *Logger {
	return &Logger{
		level: ParseLevel(level),
		out:   log.New(w, "", log.LstdFlags),
	}
}

// Level returns the configured level.
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) shouldLog(level Level) bool {
	return level >= l.level
}

func (l *Logger) logf(level Level, format string, v ...any) {
	if l.shouldLog(level) {
		l.out.Printf("["+strings.ToUpper(level.String())+"] "+format, v...)
	}
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v...) }

// Infof logs an info message
func (l *Logger) Infof(format string, v ...any) { l.logf(LevelInfo, format, v...) }

// Warnf logs a warning message
func (l *Logger) Warnf(format string, v ...any) { l.logf(LevelWarn, format, v...) }

// Errorf logs an error message
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v...) }

// Fatalf logs an error message and exits
func (l *Logger) Fatalf(format string, v ...any) {
	l.out.Fatalf("[FATAL] "+format, v...)
}

// Info logs an info message
func (l *Logger) Info(v ...any) {
	if l.shouldLog(LevelInfo) {
		l.out.Print("[INFO] ", fmt.Sprint(v...))
	}
}
