package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	purple = "\033[35m"
	cyan   = "\033[36m"
	gray   = "\033[37m"
	white  = "\033[97m"
)

const redacted = "[REDACTED]"

// Attribute keys whose values never reach the output.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"authorization": {},
}

type PrettyHandler struct {
	opts    slog.HandlerOptions
	w       io.Writer
	mu      *sync.Mutex
	attrs   []slog.Attr
	group   string
	noColor bool
}

func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &PrettyHandler{
		opts:  *opts,
		w:     w,
		mu:    &sync.Mutex{},
		attrs: []slog.Attr{},
	}
}

// WithoutColor returns a copy that writes no ANSI escapes, for files.
func (h *PrettyHandler) WithoutColor() *PrettyHandler {
	clone := *h
	clone.noColor = true
	return &clone
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder

	b.WriteString(h.paint(gray, r.Time.Format("15:04:05.000")))
	b.WriteByte(' ')

	var levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = purple
	case slog.LevelInfo:
		levelColor = green
	case slog.LevelWarn:
		levelColor = yellow
	case slog.LevelError:
		levelColor = red
	default:
		levelColor = white
	}

	// Pad level to 5 chars (INFO , ERROR, DEBUG, WARN )
	b.WriteString(h.paint(levelColor, fmt.Sprintf("%-5s", r.Level.String())))
	b.WriteByte(' ')
	b.WriteString(h.paint(white, r.Message))

	for _, a := range h.attrs {
		h.writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.group, a)
		return true
	})

	b.WriteByte('\n')
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *PrettyHandler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			h.writeAttr(b, key, child)
		}
		return
	}

	var val any = a.Value.Any()
	if _, sensitive := sensitiveKeys[strings.ToLower(a.Key)]; sensitive {
		val = redacted
	} else if t, ok := val.(time.Time); ok {
		val = t.Format(time.RFC3339)
	}

	fmt.Fprintf(b, " %s=%v", h.paint(cyan, key), val)
}

func (h *PrettyHandler) paint(color string, s string) string {
	if h.noColor {
		return s
	}
	return color + s + reset
}

// WithAttrs qualifies attrs with the current group so later groups do not
// rename them.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		newAttrs = append(newAttrs, a)
	}

	clone := *h
	clone.attrs = newAttrs
	return &clone
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := *h
	if h.group != "" {
		clone.group = h.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}
