// Package sflog defines the logging functions (e.g. Info, Errorf, etc.).
//
// Plain calls log without contextual fields. Code running inside an
// orchestration or activity should use the scoped variants in the
// scopedlogging subpackage, which stamp every record with the correlation
// fields carried by the context.
package sflog

import (
	"os"

	"go.stacforge.org/infra/go/sflog/sflogimpl"
	"go.stacforge.org/infra/go/sflog/stdlogging"
)

// WE MUST CALL SetLogger in an init function; otherwise there's a very good
// chance of getting a nil pointer panic.
func init() {
	sflogimpl.SetLogger(stdlogging.New(os.Stderr))
}

// Functions to log at various levels.
// Debug, Info, Warning, Error, and Fatal use fmt.Sprint to format the
// arguments. Functions ending in f use fmt.Sprintf.
func Debug(msg ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Debug, Args: msg, Depth: 1})
}

func Debugf(format string, v ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Debug, Format: format, Args: v, Depth: 1})
}

func Info(msg ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Info, Args: msg, Depth: 1})
}

func Infof(format string, v ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Info, Format: format, Args: v, Depth: 1})
}

func Warning(msg ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Warning, Args: msg, Depth: 1})
}

func Warningf(format string, v ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Warning, Format: format, Args: v, Depth: 1})
}

func Error(msg ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Error, Args: msg, Depth: 1})
}

func Errorf(format string, v ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Error, Format: format, Args: v, Depth: 1})
}

// Fatal* exits the program after logging.
func Fatal(msg ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Fatal, Args: msg, Depth: 1})
	Flush()
	os.Exit(255)
}

func Fatalf(format string, v ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{Severity: sflogimpl.Fatal, Format: format, Args: v, Depth: 1})
	Flush()
	os.Exit(255)
}

func Flush() {
	sflogimpl.Flush()
}
