// Package sflogimpl defines the interface between the sflog facade and the
// logger implementations that back it. Implementations live in sibling
// packages (stdlogging, tablelogging) so that importing sflog never drags in
// a cloud SDK.
package sflogimpl

import (
	"sync"
)

// Severity of a log record, in increasing order.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Fatal
)

// String returns the canonical upper-case name of the severity.
func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	}
	return "UNKNOWN"
}

// SeverityFromString parses a severity name, defaulting to Info.
func SeverityFromString(s string) Severity {
	switch s {
	case "DEBUG", "debug":
		return Debug
	case "INFO", "info":
		return Info
	case "WARNING", "warning", "WARN", "warn":
		return Warning
	case "ERROR", "error":
		return Error
	case "FATAL", "fatal":
		return Fatal
	}
	return Info
}

// Fields are the contextual key/value pairs attached to a record by an
// enclosing logging scope.
type Fields map[string]interface{}

// Record is one log entry handed to a Logger.
type Record struct {
	Severity Severity
	// Format is empty when the args should be handled fmt.Sprint style.
	Format string
	Args   []interface{}
	// Depth is the number of stack frames between the Log call and the
	// user's call site.
	Depth int
	// Fields carries the contextual fields of the active scope, or nil.
	Fields Fields
}

// Logger is the interface a logging backend implements.
type Logger interface {
	Log(r Record)
	Flush()
}

var (
	mtx    sync.RWMutex
	logger Logger
)

// SetLogger replaces the active Logger. Must be called before any logging
// happens; the sflog package does this from an init function.
func SetLogger(l Logger) {
	mtx.Lock()
	defer mtx.Unlock()
	logger = l
}

// Log forwards a record to the active logger, if any.
func Log(r Record) {
	mtx.RLock()
	l := logger
	mtx.RUnlock()
	if l != nil {
		l.Log(r)
	}
}

// Flush flushes the active logger, if any.
func Flush() {
	mtx.RLock()
	l := logger
	mtx.RUnlock()
	if l != nil {
		l.Flush()
	}
}
