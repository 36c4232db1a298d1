// Package stdlogging implements sflogimpl.Logger and logs to either stderr or
// stdout.
package stdlogging

import (
	"fmt"
	"sort"
	"strings"

	logger "github.com/jcgregorio/logger"
	"go.stacforge.org/infra/go/sflog/sflogimpl"
)

type stdlog struct {
	logger *logger.Logger
}

// New returns a sflogimpl.Logger that writes to a SyncWriter, such as
// os.Stdout or os.Stderr.
func New(dst logger.SyncWriter) sflogimpl.Logger {
	l := logger.NewFromOptions(&logger.Options{
		SyncWriter:   dst,
		DepthDelta:   3,
		IncludeDebug: true,
	})
	return &stdlog{
		logger: l,
	}
}

// Log implements sflogimpl.Logger.
func (s stdlog) Log(r sflogimpl.Record) {
	msg := fmt.Sprint(r.Args...)
	if r.Format != "" {
		msg = fmt.Sprintf(r.Format, r.Args...)
	}
	if len(r.Fields) > 0 {
		keys := make([]string, 0, len(r.Fields))
		for k := range r.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%v", k, r.Fields[k]))
		}
		msg = "[" + strings.Join(kv, " ") + "] " + msg
	}
	switch r.Severity {
	case sflogimpl.Debug:
		s.logger.Debug(msg)
	case sflogimpl.Info:
		s.logger.Info(msg)
	case sflogimpl.Warning:
		s.logger.Warning(msg)
	case sflogimpl.Error:
		s.logger.Error(msg)
	case sflogimpl.Fatal:
		s.logger.Fatal(msg)
	default:
		s.logger.Error(msg)
	}
}

// Flush implements sflogimpl.Logger.
func (s stdlog) Flush() {
	// noop
}
