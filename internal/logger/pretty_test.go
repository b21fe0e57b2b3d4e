package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerRequestPrefix(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l.With("request_id", "req-7", "mod", "flow").Info("question resolved", "answer", "yes please")

	out := buf.String()
	if !strings.Contains(out, "[req-7/flow]") {
		t.Fatalf("missing prefix: %q", out)
	}
	if strings.Contains(out, "request_id=") {
		t.Fatalf("request_id rendered as attr: %q", out)
	}
	if !strings.Contains(out, `answer="yes please"`) {
		t.Fatalf("string attr not quoted: %q", out)
	}
}

func TestPrettyHandlerLevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	l.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	l.Error("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Fatalf("error not written: %q", buf.String())
	}
}

func TestPrettyHandlerPrefixVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		log    func(Logger)
		prefix string
		attr   string
	}{
		{
			name:   "request only",
			log:    func(l Logger) { l.With("request_id", "req-3").Info("prefilled") },
			prefix: "[req-3] prefilled",
		},
		{
			name:   "mod only",
			log:    func(l Logger) { l.Info("registered", "mod", "selfprompt:yn") },
			prefix: "[selfprompt:yn] registered",
		},
		{
			name:   "grouped keys stay attrs",
			log:    func(l Logger) { l.WithGroup("flow").Info("resolved", "request_id", "req-4") },
			prefix: "INFO  resolved",
			attr:   "flow.request_id=req-4",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tc.log(New(NewPrettyHandler(&buf, nil)))
			plain := stripColor(buf.String())
			if !strings.Contains(plain, tc.prefix) {
				t.Fatalf("missing %q in %q", tc.prefix, plain)
			}
			if tc.attr != "" && !strings.Contains(plain, tc.attr) {
				t.Fatalf("missing %q in %q", tc.attr, plain)
			}
		})
	}
}

func stripColor(s string) string {
	for _, c := range []string{colorReset, colorRed, colorYellow, colorBlue, colorGray, colorCyan, colorGreen, colorBold} {
		s = strings.ReplaceAll(s, c, "")
	}
	return s
}
