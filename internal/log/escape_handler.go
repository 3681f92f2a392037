package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"
)

// EscapeHandler wraps an slog.Handler and escapes control characters in
// attribute values before passing records on.
//
// Design decision: We use a handler wrapper rather than escaping at call
// sites because paths are logged from every package; one wrapper covers
// them all and works with any underlying handler (text, JSON).
type EscapeHandler struct {
	handler slog.Handler
}

// NewEscapeHandler creates a new EscapeHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewEscapeHandler(handler slog.Handler) *EscapeHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &EscapeHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *EscapeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle escapes the record's attributes and passes it to the underlying handler.
func (h *EscapeHandler) Handle(ctx context.Context, r slog.Record) error {
	escaped := slog.NewRecord(r.Time, r.Level, Escape(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		escaped.AddAttrs(escapeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, escaped)
}

// WithAttrs returns a new handler with the given attributes added, escaped.
func (h *EscapeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	escaped := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		escaped[i] = escapeAttr(a)
	}
	return &EscapeHandler{handler: h.handler.WithAttrs(escaped)}
}

// WithGroup returns a new handler with the given group name.
func (h *EscapeHandler) WithGroup(name string) slog.Handler {
	return &EscapeHandler{handler: h.handler.WithGroup(name)}
}

func escapeAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		escaped := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			escaped[i] = escapeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(escaped...)}
	case slog.KindString:
		return slog.String(a.Key, Escape(v.String()))
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, Escape(x.Error()))
		case fmt.Stringer:
			return slog.String(a.Key, Escape(x.String()))
		case []string:
			out := make([]string, len(x))
			for i, s := range x {
				out[i] = Escape(s)
			}
			return slog.Any(a.Key, out)
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// Escape replaces control characters in s with \xNN (below U+0100) or
// \uNNNN. Backslashes are left alone. Strings without control characters
// are returned unchanged.
func Escape(s string) string {
	if strings.IndexFunc(s, unicode.IsControl) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch {
		case !unicode.IsControl(r):
			b.WriteRune(r)
		case r < 0x100:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String()
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewLogger creates a text slog.Logger with escaping.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	return slog.New(NewEscapeHandler(slog.NewTextHandler(w, opts)))
}

// NewJSONLogger creates a JSON slog.Logger with escaping. Useful when the
// log is collected by another tool.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	return slog.New(NewEscapeHandler(slog.NewJSONHandler(w, opts)))
}

// Discard returns a logger that drops everything, for tests and quiet runs.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
