package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Logger provides leveled logging with redaction support.
// The zero value is not usable; construct with New.
type Logger struct {
	out     io.Writer
	prefix  string
	debug   bool
	noColor bool
}

// New creates a new logger writing to stderr.
func New(debug, noColor bool) *Logger {
	return &Logger{
		out:     os.Stderr,
		debug:   debug,
		noColor: noColor,
	}
}

// NewWithOutput creates a logger writing to the given writer. Used in tests.
func NewWithOutput(out io.Writer, debug bool) *Logger {
	return &Logger{out: out, debug: debug, noColor: true}
}

// WithPrefix returns a logger that prepends "[prefix]" to every message.
// Used to tag scheduler and sweeper output.
func (l *Logger) WithPrefix(prefix string) *Logger {
	clone := *l
	clone.prefix = prefix
	return &clone
}

func (l *Logger) emit(symbol, color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = "[" + l.prefix + "] " + msg
	}
	if l.noColor {
		fmt.Fprintf(l.out, "%s %s\n", symbol, msg)
		return
	}
	fmt.Fprintf(l.out, "%s%s\033[0m %s\n", color, symbol, msg)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("✓", "\033[32m", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("⚠", "\033[33m", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("✗", "\033[31m", format, args...)
}

// Debug logs a debug message if debug mode is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.emit("[DEBUG]", "\033[36m", format, args...)
}

// Secret represents a value that should be redacted in logs.
type Secret string

// String implements the Stringer interface, always returning a redacted value.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting.
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED].
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if len(secret) > 3 {
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
