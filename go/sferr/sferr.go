// Package sferr provides error wrapping with call-stack context. Errors
// returned across package boundaries should pass through Wrap (or Wrapf when
// extra context helps) so that the original call site survives into the logs.
package sferr

import (
	"fmt"
	"runtime"
	"strings"
)

// StackTrace identifies a single call site in a wrapped error's context chain.
type StackTrace struct {
	File string
	Line int
}

func (st StackTrace) String() string {
	return fmt.Sprintf("%s:%d", st.File, st.Line)
}

// ErrorWithContext is an error plus the wrapping call sites and any context
// messages added along the way.
type ErrorWithContext struct {
	Wrapped   error
	CallStack []StackTrace
	Context   []string
}

// Error implements the error interface. The message is the innermost error
// followed by the context messages (innermost first) and the first call site.
func (e *ErrorWithContext) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Wrapped.Error())
	for _, c := range e.Context {
		sb.WriteString("; ")
		sb.WriteString(c)
	}
	if len(e.CallStack) > 0 {
		sb.WriteString(" At ")
		sb.WriteString(e.CallStack[0].String())
	}
	return sb.String()
}

// Unwrap returns the wrapped error, supporting errors.Is and errors.As.
func (e *ErrorWithContext) Unwrap() error {
	return e.Wrapped
}

func callSite(depth int) StackTrace {
	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return StackTrace{File: "???", Line: 0}
	}
	// Keep just the package dir and file name, the full path is noise.
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		file = strings.Join(parts[len(parts)-2:], "/")
	}
	return StackTrace{File: file, Line: line}
}

// Fmt creates a new error with a formatted message and the caller's location.
func Fmt(format string, args ...interface{}) error {
	return &ErrorWithContext{
		Wrapped:   fmt.Errorf(format, args...),
		CallStack: []StackTrace{callSite(1)},
	}
}

// Wrap adds the caller's location to err. Returns nil if err is nil, so it is
// safe to use on the happy path:
//
//	return result, sferr.Wrap(err)
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if ewc, ok := err.(*ErrorWithContext); ok {
		ewc.CallStack = append(ewc.CallStack, callSite(1))
		return ewc
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: []StackTrace{callSite(1)},
	}
}

// Wrapf is Wrap plus a formatted context message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if ewc, ok := err.(*ErrorWithContext); ok {
		ewc.CallStack = append(ewc.CallStack, callSite(1))
		ewc.Context = append(ewc.Context, msg)
		return ewc
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: []StackTrace{callSite(1)},
		Context:   []string{msg},
	}
}

// Unwrap returns the innermost error if err was produced by this package,
// otherwise err itself.
func Unwrap(err error) error {
	if ewc, ok := err.(*ErrorWithContext); ok {
		return ewc.Wrapped
	}
	return err
}
