package logging

import (
	"io"
	"maps"
	"os"
	"slices"

	"github.com/charmbracelet/log"
)

// DefaultLogger writes styled key/value lines through charmbracelet/log.
type DefaultLogger struct {
	out    *log.Logger
	fields Fields
}

// NewDefaultLogger creates a logger on stderr at info level.
func NewDefaultLogger() *DefaultLogger {
	return NewLoggerTo(os.Stderr)
}

// NewLoggerTo creates a logger writing to w at info level.
func NewLoggerTo(w io.Writer) *DefaultLogger {
	out := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
	return &DefaultLogger{out: out, fields: make(Fields)}
}

// keyvals flattens the bound and call fields, sorted by key.
func (d *DefaultLogger) keyvals(err error, fields ...Fields) []any {
	all := make(Fields, len(d.fields))
	maps.Copy(all, d.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}

	kv := make([]any, 0, 2*len(all)+2)
	if err != nil {
		kv = append(kv, "err", err)
	}
	for _, k := range slices.Sorted(maps.Keys(all)) {
		kv = append(kv, k, all[k])
	}
	return kv
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.out.Debug(msg, d.keyvals(nil, fields...)...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.out.Info(msg, d.keyvals(nil, fields...)...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.out.Warn(msg, d.keyvals(nil, fields...)...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.out.Error(msg, d.keyvals(err, fields...)...)
}

// WithFields returns a logger that adds fields to every line. The level is
// shared with the parent.
func (d *DefaultLogger) WithFields(fields Fields) Logger {
	bound := make(Fields, len(d.fields)+len(fields))
	maps.Copy(bound, d.fields)
	maps.Copy(bound, fields)
	return &DefaultLogger{out: d.out, fields: bound}
}

func (d *DefaultLogger) SetLevel(level Level) {
	switch level {
	case DebugLevel:
		d.out.SetLevel(log.DebugLevel)
	case InfoLevel:
		d.out.SetLevel(log.InfoLevel)
	case WarnLevel:
		d.out.SetLevel(log.WarnLevel)
	default:
		d.out.SetLevel(log.ErrorLevel)
	}
}

// NoOpLogger discards everything. The TUI uses it while bubbletea owns
// the terminal.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
