// Package scopedlogging logs through the sflog backends with contextual
// correlation fields carried in a context.Context. Orchestrations and
// activities open a scope once and pass the returned context down; every
// record logged through this package inside that scope is stamped with the
// scope's fields (orchestration id, activity name, etc.).
package scopedlogging

import (
	"context"

	"go.stacforge.org/infra/go/sflog/sflogimpl"
)

type contextKeyType string

const contextKey contextKeyType = "sflogScope"

// WithScope returns a context carrying the given fields, merged over any
// fields already present on ctx. Values are shipped verbatim; keep them
// small and JSON-friendly.
func WithScope(ctx context.Context, fields sflogimpl.Fields) context.Context {
	merged := sflogimpl.Fields{}
	for k, v := range ScopeFields(ctx) {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, contextKey, merged)
}

// ScopeFields returns the fields attached to ctx, or nil.
func ScopeFields(ctx context.Context) sflogimpl.Fields {
	if f, ok := ctx.Value(contextKey).(sflogimpl.Fields); ok {
		return f
	}
	return nil
}

func log(ctx context.Context, severity sflogimpl.Severity, format string, args ...interface{}) {
	sflogimpl.Log(sflogimpl.Record{
		Severity: severity,
		Format:   format,
		Args:     args,
		Depth:    2,
		Fields:   ScopeFields(ctx),
	})
}

func Debug(ctx context.Context, msg ...interface{}) {
	log(ctx, sflogimpl.Debug, "", msg...)
}

func Debugf(ctx context.Context, format string, v ...interface{}) {
	log(ctx, sflogimpl.Debug, format, v...)
}

func Info(ctx context.Context, msg ...interface{}) {
	log(ctx, sflogimpl.Info, "", msg...)
}

func Infof(ctx context.Context, format string, v ...interface{}) {
	log(ctx, sflogimpl.Info, format, v...)
}

func Warning(ctx context.Context, msg ...interface{}) {
	log(ctx, sflogimpl.Warning, "", msg...)
}

func Warningf(ctx context.Context, format string, v ...interface{}) {
	log(ctx, sflogimpl.Warning, format, v...)
}

func Error(ctx context.Context, msg ...interface{}) {
	log(ctx, sflogimpl.Error, "", msg...)
}

func Errorf(ctx context.Context, format string, v ...interface{}) {
	log(ctx, sflogimpl.Error, format, v...)
}
