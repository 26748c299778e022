package core

import "context"

type contextKey string

const ctxKeySource contextKey = "import_source"

// ContextWithSource records who started an import (client IP, "cli") for the
// import history.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ctxKeySource, source)
}

// SourceFromContext returns the import source or "".
func SourceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySource).(string); ok {
		return v
	}
	return ""
}
