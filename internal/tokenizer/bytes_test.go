package tokenizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestByteLevelRoundTrip(t *testing.T) {
	t.Parallel()

	tok := NewByteLevel()
	ids, err := tok.Encode("Q:é")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if diff := cmp.Diff([]int{'Q', ':', 0xc3, 0xa9}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	got, err := tok.Decode(append(ids, ByteEOS))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != "Q:é" {
		t.Fatalf("got %q, want %q", got, "Q:é")
	}
}

func TestByteLevelDecodeRejectsUnknownID(t *testing.T) {
	t.Parallel()

	if _, err := NewByteLevel().Decode([]int{1000}); err == nil {
		t.Fatal("expected error for out-of-range id")
	}
}

func TestTokenText(t *testing.T) {
	t.Parallel()

	tok := NewByteLevel()
	if got := TokenText(tok, 'a'); got != "a" {
		t.Fatalf("got %q, want %q", got, "a")
	}
	if got := TokenText(tok, ByteEOS); got != "" {
		t.Fatalf("eos text = %q, want empty", got)
	}
	if tok.VocabSize() != 257 {
		t.Fatalf("vocab size = %d, want 257", tok.VocabSize())
	}
}
