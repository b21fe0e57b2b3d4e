package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/urfave/cli/v3"
)

const sampleConfig = `
temperature: 0.2
top_k: 8
max_tokens: 64
seed: 42
hidden: 32
flow: /etc/steer/triage.yaml
mod_timeout: 250ms
log_format: json
server_address: 0.0.0.0:9090
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("STEER_CONFIG", path)

	cfg := LoadConfig()
	if cfg.Temperature == nil || *cfg.Temperature != 0.2 {
		t.Fatalf("temperature not loaded: %+v", cfg)
	}
	if cfg.ModTimeout == nil || *cfg.ModTimeout != 250*time.Millisecond {
		t.Fatalf("mod_timeout not loaded: %+v", cfg.ModTimeout)
	}
	d := cfg.Defaults()
	if *d.MaxTokens != 64 || *d.TopK != 8 || d.TopP != nil {
		t.Fatalf("unexpected defaults: %+v", d)
	}

	if got := loadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml")); !cmp.Equal(got, Config{}) {
		t.Fatalf("missing file should give zero config: %+v", got)
	}
	if got := loadConfigFrom(writeConfig(t, "top_k: [")); !cmp.Equal(got, Config{}) {
		t.Fatalf("broken file should give zero config: %+v", got)
	}
}

func TestFlagsWinOverConfig(t *testing.T) {
	cfg := loadConfigFrom(writeConfig(t, sampleConfig))
	var addr string
	cmd := &cli.Command{
		Name: "serve",
		Flags: append(append([]cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:8080", Destination: &addr},
		}, backendFlags()...), steeringFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, cfg, &addr)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"serve", "--seed", "7"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if seed != 7 {
		t.Fatalf("explicit --seed overridden: %d", seed)
	}
	if hidden != 32 || flowPath != "/etc/steer/triage.yaml" || modTimeout != 250*time.Millisecond {
		t.Fatalf("config not applied: hidden=%d flow=%q timeout=%s", hidden, flowPath, modTimeout)
	}
	if addr != "0.0.0.0:9090" {
		t.Fatalf("addr = %q", addr)
	}
}

func TestResolveLogFormat(t *testing.T) {
	prev := stderrIsTTY
	defer func() { stderrIsTTY = prev }()

	stderrIsTTY = func() bool { return true }
	if got := resolveLogFormat("auto"); got != "pretty" {
		t.Fatalf("auto on a terminal = %q", got)
	}
	stderrIsTTY = func() bool { return false }
	if got := resolveLogFormat(""); got != "json" {
		t.Fatalf("auto off a terminal = %q", got)
	}
	if got := resolveLogFormat(" TEXT "); got != "text" {
		t.Fatalf("explicit format = %q", got)
	}
}

func TestLoadFlowReportsPath(t *testing.T) {
	path := writeConfig(t, "questions:\n  - name: q\n")
	if _, err := loadFlow(path); err == nil {
		t.Fatal("expected an error for a question without a strategy")
	}

	good := writeConfig(t, "name: demo\nquestions:\n  - name: q\n    strategy: {choices: [a, b]}\n")
	fe, err := loadFlow(good)
	if err != nil {
		t.Fatalf("loadFlow: %v", err)
	}
	if fe.Name() != "flow:demo" {
		t.Fatalf("name = %q", fe.Name())
	}
}
