// Package logging provides structured logging with configurable levels
package logging

import (
	"fmt"
	"os"

	pkglogging "github.com/souschef/souschef/pkg/logging"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// DebugLevel is for detailed debugging information
	DebugLevel LogLevel = iota
	// InfoLevel is for general informational messages
	InfoLevel
	// WarnLevel is for warning messages that indicate potential problems
	WarnLevel
	// ErrorLevel is for error messages that indicate serious problems
	ErrorLevel
)

// Logger provides structured logging
type Logger struct {
	level      LogLevel
	prefix     string
	slogLogger *pkglogging.SlogLogger
}

// NewLogger creates a logger with the given prefix
func NewLogger(prefix string) *Logger {
	level := InfoLevel
	if os.Getenv("SOUSCHEF_DEBUG") == "true" {
		level = DebugLevel
	}
	// Reduce verbosity during tests
	if os.Getenv("SOUSCHEF_TEST_MODE") == "true" {
		level = ErrorLevel
	}
	return &Logger{
		level:      level,
		prefix:     prefix,
		slogLogger: pkglogging.NewSlogLogger(prefix),
	}
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level <= DebugLevel {
		l.slogLogger.Debug(fmt.Sprintf(format, args...))
	}
}

// Infof logs an info message
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level <= InfoLevel {
		l.slogLogger.Info(fmt.Sprintf(format, args...))
	}
}

// Warnf logs a warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.level <= WarnLevel {
		l.slogLogger.Warn(fmt.Sprintf(format, args...))
	}
}

// Errorf logs an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.level <= ErrorLevel {
		l.slogLogger.Error(fmt.Sprintf(format, args...))
	}
}

// ResourceStepStart logs the start of a resource orchestration step
func (l *Logger) ResourceStepStart(kind, name string, current, total int) {
	l.Infof("step %d/%d: %s %q", current, total, kind, name)
}

// ResourceStepSuccess logs a successful resource orchestration step
func (l *Logger) ResourceStepSuccess(kind, name string) {
	l.Infof("success: %s %q", kind, name)
}

// ResourceStepSkipped logs a skipped (nothing to do) teardown step
func (l *Logger) ResourceStepSkipped(kind, name string) {
	l.Infof("skip: %s %q not found, nothing to do", kind, name)
}

// ResourceStepFailed logs a failed resource orchestration step
func (l *Logger) ResourceStepFailed(kind, name string, err error) {
	l.Errorf("failed: %s %q: %v", kind, name, err)
}

// LoadSummary logs the final tally of a bulk load run
func (l *Logger) LoadSummary(table string, written, failed int) {
	l.Infof("load complete: table=%s written=%d failed=%d", table, written, failed)
}
