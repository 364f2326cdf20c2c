package diag

import (
	"context"
	"log/slog"
	"strings"
)

// SuccessKey marks an info record as a success in the pane
const SuccessKey = "success"

// Success is the attribute that turns an info record into a SUCCESS entry
func Success() slog.Attr {
	return slog.Bool(SuccessKey, true)
}

// Handler tees every record into a Buffer before passing it on
type Handler struct {
	next   slog.Handler
	buf    *Buffer
	attrs  []slog.Attr
	groups []string
}

// NewHandler wraps next; records below next's level are not buffered
func NewHandler(next slog.Handler, buf *Buffer) *Handler {
	return &Handler{next: next, buf: buf}
}

// Enabled implements slog.Handler
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	success := false
	var parts []string
	prefix := strings.Join(h.groups, ".")

	add := func(a slog.Attr, group string) {
		a.Value = a.Value.Resolve()
		if a.Key == SuccessKey && a.Value.Kind() == slog.KindBool {
			success = success || a.Value.Bool()
			return
		}
		if a.Equal(slog.Attr{}) {
			return
		}
		key := a.Key
		if group != "" {
			key = group + "." + key
		}
		parts = append(parts, key+"="+formatValue(a.Value))
	}
	for _, a := range h.attrs {
		add(a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a, prefix)
		return true
	})

	h.buf.Add(Entry{
		Time:    r.Time,
		Level:   levelName(r.Level, success),
		Message: r.Message,
		Attrs:   strings.Join(parts, " "),
	})
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup implements slog.Handler
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func levelName(l slog.Level, success bool) string {
	switch {
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarning
	case l < slog.LevelInfo:
		return LevelDebug
	case success:
		return LevelSuccess
	}
	return LevelInfo
}

func formatValue(v slog.Value) string {
	s := v.String()
	if strings.ContainsAny(s, " \t\"=") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
