package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCaptureLoggerTeesOutput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	base := New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}))

	l, c := CaptureLogger(base)
	l = l.With("request_id", "r1", "mod", "selfprompt:yn")
	l.Debug("masked", "allowed", 2)
	l.Info("forcing prompt", "tokens", 3)

	want := []string{"DEBUG masked allowed=2", "INFO forcing prompt tokens=3"}
	if diff := cmp.Diff(want, c.Lines()); diff != "" {
		t.Fatalf("captured lines mismatch (-want +got):\n%s", diff)
	}

	// debug is below the base handler's level; only the info line reaches it
	forwarded := out.String()
	if strings.Contains(forwarded, "masked") {
		t.Fatalf("debug record leaked to base handler: %q", forwarded)
	}
	if !strings.Contains(forwarded, "request_id=r1") || !strings.Contains(forwarded, "forcing prompt") {
		t.Fatalf("base handler missing record: %q", forwarded)
	}
}

func TestCaptureWithoutNext(t *testing.T) {
	t.Parallel()

	c := NewCapture(nil)
	l := New(c).WithGroup("strategy")
	l.Warn("no survivors", "step", 4)

	if got, want := c.Text(), "WARN no survivors strategy.step=4"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
