package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Capture is a slog.Handler that keeps a plain-text copy of every record it
// sees and forwards the record to the next handler. The dispatcher wraps each
// mod call in one so the mod's diagnostics land in the request trace.
type Capture struct {
	next  slog.Handler
	buf   *captureBuf
	attrs []slog.Attr
	group string
}

type captureBuf struct {
	mu    sync.Mutex
	lines []string
}

// Attribute keys already carried by the trace record; they are left out of
// captured lines.
var contextKeys = map[string]bool{"request_id": true, "mod": true}

// NewCapture returns a capturing handler. next may be nil.
func NewCapture(next slog.Handler) *Capture {
	return &Capture{next: next, buf: &captureBuf{}}
}

// CaptureLogger tees base into a fresh Capture.
func CaptureLogger(base Logger) (Logger, *Capture) {
	c := NewCapture(HandlerOf(base))
	return New(c), c
}

func (c *Capture) Enabled(context.Context, slog.Level) bool { return true }

func (c *Capture) Handle(ctx context.Context, r slog.Record) error {
	buf := make([]byte, 0, 128)
	buf = append(buf, r.Level.String()...)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	emit := func(a slog.Attr) {
		if contextKeys[a.Key] {
			return
		}
		buf = append(buf, ' ')
		buf = appendAttr(buf, a, c.group)
	}
	for _, a := range c.attrs {
		emit(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		emit(a)
		return true
	})

	c.buf.mu.Lock()
	c.buf.lines = append(c.buf.lines, string(buf))
	c.buf.mu.Unlock()

	if c.next != nil && c.next.Enabled(ctx, r.Level) {
		return c.next.Handle(ctx, r.Clone())
	}
	return nil
}

func (c *Capture) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &Capture{buf: c.buf, group: c.group}
	out.attrs = append(append(out.attrs, c.attrs...), attrs...)
	if c.next != nil {
		out.next = c.next.WithAttrs(attrs)
	}
	return out
}

func (c *Capture) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	out := &Capture{buf: c.buf, attrs: c.attrs, group: name}
	if c.group != "" {
		out.group = c.group + "." + name
	}
	if c.next != nil {
		out.next = c.next.WithGroup(name)
	}
	return out
}

// Lines returns the captured lines in order.
func (c *Capture) Lines() []string {
	c.buf.mu.Lock()
	defer c.buf.mu.Unlock()
	return append([]string(nil), c.buf.lines...)
}

// Text joins the captured lines with newlines.
func (c *Capture) Text() string {
	return strings.Join(c.Lines(), "\n")
}
