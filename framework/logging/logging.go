// Package logging builds the structured logger shared by the runtime.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the slice of [log.Logger] the runtime packages depend on.
// Arguments after msg are key-value pairs.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// NewLogger creates a [log.Logger] writing to w with timestamps enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{ReportTimestamp: true})
}

// WithLogger creates a child [log.Logger] with the key-value pairs added to all entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel parses a level name ("debug", "info", "warn", "error") and applies it.
// Unknown names leave the level untouched.
func SetLogLevel(l *log.Logger, level string) {
	if level == "" {
		return
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	l.SetLevel(lvl)
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return log.New(io.Discard)
}

// OrNop returns l, or a discarding logger when l is nil or a nil *log.Logger.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	if cl, ok := l.(*log.Logger); ok && cl == nil {
		return Nop()
	}
	return l
}
