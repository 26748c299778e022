// Package logging provides structured logging configuration using log/slog.
//
// Request loggers pick up chi's request id so every entry written while
// serving an upload can be correlated with the import run it started.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey struct{}

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. The CLI passes os.Stderr so that
// command output on stdout stays machine-readable.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

var formats = []string{"text", "json"}

// parseLevel falls back to info for unknown names.
func parseLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// CheckLevel reports whether New understands level.
func CheckLevel(level string) error {
	if _, ok := levels[strings.ToLower(level)]; !ok {
		return fmt.Errorf("unknown log level %q (want one of debug, info, warn, error)", level)
	}
	return nil
}

// CheckFormat reports whether New understands format.
func CheckFormat(format string) error {
	if !slices.Contains(formats, strings.ToLower(format)) {
		return fmt.Errorf("unknown log format %q (want one of %s)", format, strings.Join(formats, ", "))
	}
	return nil
}

// FromContext returns the logger stored in ctx, or the default logger
// enriched with chi's request id when one is present.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// WithFields returns a logger with additional structured fields.
//
//	importLogger := logging.WithFields(ctx, "import_id", id, "file", name)
//	importLogger.Info("import started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

// NewContext stores logger in ctx so that downstream calls to FromContext
// reuse its fields.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// LevelForStatus picks the access log level for an HTTP status: server
// errors log at error, client errors at warn.
func LevelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
