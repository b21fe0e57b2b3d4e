package toy

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samcharles93/steer/internal/inference"
	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/logits"
	"github.com/samcharles93/steer/internal/mods"
	"github.com/samcharles93/steer/internal/tokenizer"
)

func newBackend(t *testing.T, script string) (*Backend, tokenizer.Tokenizer) {
	t.Helper()
	tok := tokenizer.NewByteLevel()
	b, err := NewBackend(tok, Options{Seed: 1, Script: script})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b, tok
}

func TestScriptedGeneration(t *testing.T) {
	t.Parallel()
	b, tok := newBackend(t, "hello")
	eng := &inference.Engine{
		Backend:   b,
		Tokenizer: tok,
		Mods:      mods.NewRegistry(mods.Options{Logger: logger.Discard()}),
		Logger:    logger.Discard(),
	}
	cfg := inference.Config{MaxTokens: 32, Temperature: 0}

	res, err := eng.Generate(context.Background(), "r1", tokenizer.MustEncode(tok, "say: "), cfg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "hello" {
		t.Fatalf("text = %q, want %q", res.Text, "hello")
	}
	if res.Metadata.FinishReason != inference.FinishStop {
		t.Fatalf("finish = %q, want stop", res.Metadata.FinishReason)
	}
	if b.Active() != 0 {
		t.Fatalf("request context not released: %d active", b.Active())
	}
}

func TestRewindAndContext(t *testing.T) {
	t.Parallel()
	b, _ := newBackend(t, "")
	ctx := context.Background()

	if err := b.Prefill(ctx, "r", []int{1, 2}, 8); err != nil {
		t.Fatal(err)
	}
	if _, err := b.AddTokens(ctx, "r", []int{3, 4, 5}, false); err != nil {
		t.Fatal(err)
	}
	if err := b.Rewind(ctx, "r", 2); err != nil {
		t.Fatal(err)
	}
	got, err := b.Context("r")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Fatalf("context mismatch (-want +got):\n%s", diff)
	}
	if err := b.Rewind(ctx, "r", 2); err == nil {
		t.Fatal("rewinding into the prompt should fail")
	}
}

func TestUnknownRequestAndShutdown(t *testing.T) {
	t.Parallel()
	b, _ := newBackend(t, "")
	ctx := context.Background()

	if _, err := b.ForwardPass(ctx, "missing"); !errors.Is(err, ErrUnknownRequest) {
		t.Fatalf("ForwardPass err = %v, want ErrUnknownRequest", err)
	}
	b.Release("missing")

	if err := b.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := b.Prefill(ctx, "r", nil, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Prefill after shutdown err = %v, want ErrClosed", err)
	}
}

func TestRejectsOutOfRangeTokens(t *testing.T) {
	t.Parallel()
	b, _ := newBackend(t, "")
	ctx := context.Background()
	if err := b.Prefill(ctx, "r", []int{999}, 1); err == nil {
		t.Fatal("expected error for out-of-range prompt id")
	}
	if err := b.Prefill(ctx, "r", nil, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Sample(ctx, "r", []float32{1, 2}, logits.Params{}); err == nil {
		t.Fatal("expected error for wrong logits length")
	}
}
