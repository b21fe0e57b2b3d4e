package logits

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Two samplers seeded identically draw identical ids.
func TestSamplerDeterminism(t *testing.T) {
	t.Parallel()

	logs := []float32{0, 1, 2, 3, 4, 5}
	p := Params{Temperature: 0.9, TopK: 4, TopP: 0.95}
	s1 := NewSampler(42)
	s2 := NewSampler(42)
	for i := 0; i < 8; i++ {
		a := s1.Sample(logs, p)
		b := s2.Sample(logs, p)
		if a != b {
			t.Fatalf("draw %d: expected deterministic sample, got %d vs %d", i, a, b)
		}
	}
}

func TestSamplerGreedy(t *testing.T) {
	t.Parallel()

	logs := []float32{-1, 5, 3, 7, 2}
	cases := []struct {
		name string
		p    Params
	}{
		{name: "top-k-one", p: Params{Temperature: 1, TopK: 1, TopP: 1}},
		{name: "zero-temperature", p: Params{Temperature: 0, TopK: 40, TopP: 0.9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if idx := NewSampler(99).Sample(logs, tc.p); idx != 3 {
				t.Fatalf("expected greedy index 3, got %d", idx)
			}
		})
	}
}

// The dominant logit exhausts TopP on its own, so nothing else is drawn.
func TestSamplerTopP(t *testing.T) {
	t.Parallel()

	logs := []float32{10, 0, 0, 0, 0}
	s := NewSampler(7)
	for i := 0; i < 10; i++ {
		if idx := s.Sample(logs, Params{Temperature: 1, TopK: 5, TopP: 0.5}); idx != 0 {
			t.Fatalf("top-p sampling returned unexpected index %d", idx)
		}
	}
}

func TestSamplerNeverPicksMasked(t *testing.T) {
	t.Parallel()

	base := []float32{9, 9, 1, 9, 0.5}
	masked := Mask(base, []int{2, 4}, nil)
	s := NewSampler(1)
	for i := 0; i < 50; i++ {
		idx := s.Sample(masked, Params{Temperature: 1.5, TopK: 5, TopP: 1})
		if idx != 2 && idx != 4 {
			t.Fatalf("sampled masked id %d", idx)
		}
	}
}

func TestMask(t *testing.T) {
	t.Parallel()

	in := []float32{1, 2, 3, 4}
	cases := []struct {
		name    string
		allowed []int
		denied  []int
		live    []int
	}{
		{name: "allow-all", allowed: nil, live: []int{0, 1, 2, 3}},
		{name: "allow-subset", allowed: []int{1, 3}, live: []int{1, 3}},
		{name: "deny-overrides-allow", allowed: []int{1, 3}, denied: []int{3}, live: []int{1}},
		{name: "deny-only", denied: []int{0, 9}, live: []int{1, 2, 3}},
		{name: "allowed-out-of-range", allowed: []int{-1, 7, 2}, live: []int{2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Mask(in, tc.allowed, tc.denied)
			if diff := cmp.Diff(tc.live, Live(out)); diff != "" {
				t.Fatalf("live ids mismatch (-want +got):\n%s", diff)
			}
			for _, id := range tc.live {
				if out[id] != in[id] {
					t.Fatalf("allowed id %d changed: %v -> %v", id, in[id], out[id])
				}
			}
		})
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4}, in); diff != "" {
		t.Fatalf("input mutated:\n%s", diff)
	}
}
