// Package logging provides the leveled Logger interface used throughout
// the storage engine, and a default implementation backed by the
// standard log package.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

// Level is a logging verbosity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Namespace prefixes the subsystem a log line came from.
type Namespace string

const (
	NSWAL      Namespace = "wal"
	NSManifest Namespace = "manifest"
	NSRecovery Namespace = "recovery"
	NSDB       Namespace = "db"
)

// Logger is the leveled logging interface the DB, WAL, and recovery
// path write to.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
	// Fatalf logs at the highest severity and invokes the configured
	// FatalHandler, if any. It does not call os.Exit: the caller
	// decides what "fatal" means for a library embedded in a larger
	// process (typically, poisoning the DB so subsequent calls fail).
	Fatalf(format string, args ...any)
}

// FatalHandler is invoked by Fatalf after logging the message.
type FatalHandler func(msg string)

// DefaultLogger writes leveled, namespaced lines to an underlying
// *log.Logger.
type DefaultLogger struct {
	ns           Namespace
	logger       *log.Logger
	level        Level
	fatalHandler atomic.Pointer[FatalHandler]
}

// NewDefaultLogger returns a Logger writing to os.Stderr at the given
// level, for namespace ns.
func NewDefaultLogger(ns Namespace, level Level) *DefaultLogger {
	return NewLogger(ns, os.Stderr, level)
}

// NewLogger returns a Logger writing to w.
func NewLogger(ns Namespace, w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{ns: ns, logger: log.New(w, "", log.LstdFlags), level: level}
}

// SetFatalHandler installs the function Fatalf invokes after logging.
func (l *DefaultLogger) SetFatalHandler(h FatalHandler) {
	l.fatalHandler.Store(&h)
}

func (l *DefaultLogger) log(lvl Level, format string, args ...any) {
	if lvl < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	_ = l.logger.Output(3, fmt.Sprintf("%s [%s] %s", lvl, l.ns, msg))
}

func (l *DefaultLogger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *DefaultLogger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }

func (l *DefaultLogger) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.log(LevelError, "FATAL: %s", msg)
	if h := l.fatalHandler.Load(); h != nil {
		(*h)(msg)
	}
}

// discardLogger drops everything; used as the default when the caller
// supplies no Logger.
type discardLogger struct{}

func (discardLogger) Errorf(string, ...any) {}
func (discardLogger) Warnf(string, ...any)  {}
func (discardLogger) Infof(string, ...any)  {}
func (discardLogger) Debugf(string, ...any) {}
func (discardLogger) Fatalf(string, ...any) {}

// Discard is a Logger that drops all output.
var Discard Logger = discardLogger{}

// OrDefault returns l if non-nil, otherwise Discard.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
