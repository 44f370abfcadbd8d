package tissue

import "fmt"

// Logger interface for logging operations, injectable into the tissue package.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// NoOpLogger is a logger that does nothing (useful for testing or when logging is disabled)
type NoOpLogger struct{}

func (n *NoOpLogger) Debugf(format string, v ...any) {}
func (n *NoOpLogger) Infof(format string, v ...any)  {}
func (n *NoOpLogger) Warnf(format string, v ...any)  {}
func (n *NoOpLogger) Errorf(format string, v ...any) {}

// NewNoOpLogger creates a no-op logger
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

// runLogger prefixes every message with the run it belongs to.
type runLogger struct {
	run  RunID
	next Logger
}

func withRun(l Logger, run RunID) Logger {
	if l == nil {
		return NewNoOpLogger()
	}
	if run == "" {
		return l
	}
	return &runLogger{run: run, next: l}
}

func (r *runLogger) prefix(format string) string {
	return fmt.Sprintf("run=%s ", r.run) + format
}

func (r *runLogger) Debugf(format string, v ...any) { r.next.Debugf(r.prefix(format), v...) }
func (r *runLogger) Infof(format string, v ...any)  { r.next.Infof(r.prefix(format), v...) }
func (r *runLogger) Warnf(format string, v ...any)  { r.next.Warnf(r.prefix(format), v...) }
func (r *runLogger) Errorf(format string, v ...any) { r.next.Errorf(r.prefix(format), v...) }
