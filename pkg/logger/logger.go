package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns the JSON logger used by every binary. local and dev log at debug level.
func New(appEnv string) *slog.Logger {
	return NewWithWriter(os.Stdout, appEnv)
}

func NewWithWriter(w io.Writer, appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: redact}))
}

// secretKeys never reach the log sink in clear text.
var secretKeys = map[string]bool{
	"token":         true,
	"authorization": true,
	"master_token":  true,
	"link_secret":   true,
	"password":      true,
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] && a.Value.Kind() == slog.KindString && a.Value.String() != "" {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// Op returns a logger annotated with the operation and entity names used by service layers.
func Op(ctx context.Context, op, entity string) *slog.Logger {
	return From(ctx).With("op", op, "entity", entity)
}
