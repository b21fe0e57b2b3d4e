package selfprompt

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/samcharles93/steer/internal/inference"
	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/logits"
	"github.com/samcharles93/steer/internal/mods"
	"github.com/samcharles93/steer/internal/strategy"
	"github.com/samcharles93/steer/internal/tokenizer"
	"github.com/samcharles93/steer/internal/toy"
)

var byteTok = tokenizer.NewByteLevel()

// driver feeds events for one request straight into a SelfPrompt.
type driver struct {
	t   *testing.T
	sp  *SelfPrompt
	rid string
}

func newDriver(t *testing.T, cfg Config) *driver {
	t.Helper()
	sp, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d := &driver{t: t, sp: sp, rid: "req"}
	d.handle(mods.Prefilled{Meta: mods.Meta{RequestID: d.rid}})
	return d
}

func (d *driver) handle(ev mods.Event) mods.Action {
	d.t.Helper()
	a, err := d.sp.Handle(context.Background(), ev, byteTok)
	if err != nil {
		d.t.Fatalf("Handle(%s): %v", ev.Kind(), err)
	}
	return a
}

func (d *driver) forward() mods.Action {
	d.t.Helper()
	return d.handle(mods.ForwardPass{
		Meta:   mods.Meta{RequestID: d.rid},
		Logits: make([]float32, byteTok.VocabSize()),
	})
}

func (d *driver) added(text string, forced bool) {
	d.t.Helper()
	a := d.handle(mods.Added{
		Meta:        mods.Meta{RequestID: d.rid},
		AddedTokens: tokenizer.MustEncode(byteTok, text),
		Forced:      forced,
	})
	if !mods.IsNoop(a) {
		d.t.Fatalf("Added returned %s, want Noop", a.Kind())
	}
}

func (d *driver) expectForce(text string) {
	d.t.Helper()
	a, ok := d.forward().(mods.ForceTokens)
	if !ok {
		d.t.Fatalf("forward did not force %q", text)
	}
	if diff := cmp.Diff(tokenizer.MustEncode(byteTok, text), a.Tokens); diff != "" {
		d.t.Fatalf("forced tokens mismatch (-want +got):\n%s", diff)
	}
}

func (d *driver) expectAllowed(want string) mods.AdjustedLogits {
	d.t.Helper()
	a, ok := d.forward().(mods.AdjustedLogits)
	if !ok {
		d.t.Fatalf("forward did not adjust logits")
	}
	got := logits.Live(a.Logits)
	if diff := cmp.Diff(tokenizer.MustEncode(byteTok, want), got, cmpopts.SortSlices(func(a, b int) bool { return a < b })); diff != "" {
		d.t.Fatalf("allowed tokens mismatch (-want +got):\n%s", diff)
	}
	return a
}

func yesNo() strategy.Spec { return strategy.Choices{Alternatives: []string{"Y", "N"}} }

func TestErasePromptWithoutSuffix(t *testing.T) {
	t.Parallel()
	d := newDriver(t, Config{Prompt: "Q:", Strategy: yesNo(), Erase: ErasePrompt})

	d.expectForce("Q:")
	d.added("Q:", true)
	d.expectAllowed("YN")
	d.added("Y", false)

	bt, ok := d.forward().(mods.Backtrack)
	if !ok {
		t.Fatal("expected Backtrack after answer")
	}
	if diff := cmp.Diff(mods.Backtrack{N: 3, Tokens: []int{'Y'}}, bt); diff != "" {
		t.Fatalf("backtrack mismatch (-want +got):\n%s", diff)
	}
	if ans, ok := d.sp.Answer(d.rid); !ok || ans != "Y" {
		t.Fatalf("Answer = %q, %v", ans, ok)
	}
	if !mods.IsNoop(d.forward()) {
		t.Fatal("done exchange should be Noop")
	}
}

func TestErasePromptWithSuffix(t *testing.T) {
	t.Parallel()
	d := newDriver(t, Config{Prompt: "Q:", Strategy: yesNo(), Erase: ErasePrompt, Suffix: "\n"})

	d.expectForce("Q:")
	d.added("Q:", true)
	d.expectAllowed("YN")
	d.added("N", false)
	d.expectForce("\n")
	d.added("\n", true)

	bt, ok := d.forward().(mods.Backtrack)
	if !ok {
		t.Fatal("expected Backtrack after suffix")
	}
	if diff := cmp.Diff(mods.Backtrack{N: 4, Tokens: []int{'N'}}, bt); diff != "" {
		t.Fatalf("backtrack mismatch (-want +got):\n%s", diff)
	}
	snap, _ := d.sp.State(d.rid)
	if snap.Phase != PhaseDone || snap.Erased() != 4 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestEraseAllSkipsSuffix(t *testing.T) {
	t.Parallel()
	d := newDriver(t, Config{Prompt: "P", Strategy: strategy.Choices{Alternatives: []string{"A", "B"}}, Erase: EraseAll, Suffix: "\n"})

	d.expectForce("P")
	d.added("P", true)
	d.expectAllowed("AB")
	d.added("A", false)

	bt, ok := d.forward().(mods.Backtrack)
	if !ok {
		t.Fatal("expected Backtrack")
	}
	if bt.N != 2 || len(bt.Tokens) != 0 {
		t.Fatalf("backtrack = %+v, want n=2 with no tokens", bt)
	}
}

func TestEraseNoneLeavesTranscript(t *testing.T) {
	t.Parallel()
	d := newDriver(t, Config{Prompt: "Q:", Strategy: yesNo()})

	d.expectForce("Q:")
	d.added("Q:", true)
	d.expectAllowed("YN")
	d.added("Y", false)
	if !mods.IsNoop(d.forward()) {
		t.Fatal("erase none should not act")
	}
	snap, _ := d.sp.State(d.rid)
	if snap.Erase != nil || snap.Phase != PhaseDone {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestArgmaxSetsTemperature(t *testing.T) {
	t.Parallel()
	d := newDriver(t, Config{PromptTokens: []int{'?'}, Strategy: yesNo(), Argmax: true})
	d.expectForce("?")
	d.added("?", true)
	a := d.expectAllowed("YN")
	if a.Temperature == nil || *a.Temperature != 0 {
		t.Fatalf("temperature = %v, want 0", a.Temperature)
	}
}

func TestMalformedConfig(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		cfg   Config
		field string
	}{
		{name: "no-strategy", cfg: Config{Prompt: "Q"}, field: "strategy"},
		{name: "bad-erase", cfg: Config{Strategy: yesNo(), Erase: EraseMode(9)}, field: "erase"},
		{name: "binary-suffix", cfg: Config{Strategy: yesNo(), Suffix: "\xff\xfe"}, field: "completion"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tc.cfg)
			if !errors.Is(err, ErrMalformedSelfPrompt) {
				t.Fatalf("err = %v, want ErrMalformedSelfPrompt", err)
			}
			var me *MalformedError
			if !errors.As(err, &me) || me.Field != tc.field {
				t.Fatalf("err = %#v, want field %q", err, tc.field)
			}
		})
	}
}

func TestParseEraseMode(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]EraseMode{"": EraseNone, "None": EraseNone, "prompt": ErasePrompt, " ALL ": EraseAll} {
		got, err := ParseEraseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseEraseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseEraseMode("some"); !errors.Is(err, ErrMalformedSelfPrompt) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefreshListElement(t *testing.T) {
	t.Parallel()
	list := strategy.List{
		Elements: []strategy.Spec{
			strategy.Choices{Alternatives: []string{"a", "b"}},
			strategy.Choices{Alternatives: []string{"c", "d"}},
		},
		Sep: strategy.Separator(","),
	}
	d := newDriver(t, Config{Strategy: list})
	other := &driver{t: t, sp: d.sp, rid: "other"}
	other.handle(mods.Prefilled{Meta: mods.Meta{RequestID: other.rid}})

	if err := d.sp.RefreshResponses([]string{"x", "y"}, d.rid, 1); err != nil {
		t.Fatalf("RefreshResponses: %v", err)
	}

	d.expectAllowed("ab")
	d.added("a", false)
	d.expectAllowed(",")
	d.added(",", false)
	d.expectAllowed("xy")

	other.expectAllowed("ab")
	other.added("b", false)
	other.expectAllowed(",")
	other.added(",", false)
	other.expectAllowed("cd")
}

func TestRefreshTopLevelChoices(t *testing.T) {
	t.Parallel()
	d := newDriver(t, Config{Prompt: "Q:", Strategy: yesNo()})
	if err := d.sp.RefreshResponses([]string{"M"}, d.rid, 0); err != nil {
		t.Fatal(err)
	}
	d.expectForce("Q:")
	d.added("Q:", true)
	d.expectAllowed("M")
	d.added("M", false)
	if err := d.sp.RefreshResponses([]string{"Z"}, d.rid, 0); err == nil {
		t.Fatal("refresh after answering should fail")
	}
}

func TestRefreshConfigForLaterRequests(t *testing.T) {
	t.Parallel()
	sp, err := New(Config{Strategy: yesNo()})
	if err != nil {
		t.Fatal(err)
	}
	if err := sp.RefreshResponses([]string{"k"}, "", 0); err != nil {
		t.Fatal(err)
	}
	d := &driver{t: t, sp: sp, rid: "later"}
	d.handle(mods.Prefilled{Meta: mods.Meta{RequestID: d.rid}})
	d.expectAllowed("k")

	if err := sp.RefreshResponses([]string{"k"}, "missing", 0); err == nil {
		t.Fatal("refresh for unknown request should fail")
	}
}

func TestFinishReleasesState(t *testing.T) {
	t.Parallel()
	d := newDriver(t, Config{Strategy: yesNo()})
	if d.sp.Active() != 1 {
		t.Fatalf("active = %d", d.sp.Active())
	}
	d.sp.Finish(d.rid)
	if _, ok := d.sp.State(d.rid); ok || d.sp.Active() != 0 {
		t.Fatal("state not released")
	}
}

func TestGenerateVisibleExchange(t *testing.T) {
	t.Parallel()
	backend, err := toy.NewBackend(byteTok, toy.Options{Seed: 3, Script: "Q:B"})
	if err != nil {
		t.Fatal(err)
	}
	sp, err := New(Config{Prompt: "Q:", Strategy: strategy.Choices{Alternatives: []string{"A", "B"}}, Argmax: true})
	if err != nil {
		t.Fatal(err)
	}
	reg := mods.NewRegistry(mods.Options{Logger: logger.Discard()})
	reg.Register(sp)
	eng := &inference.Engine{Backend: backend, Tokenizer: byteTok, Mods: reg, Logger: logger.Discard()}

	res, err := eng.Generate(context.Background(), "gen", tokenizer.MustEncode(byteTok, "> "), inference.Config{MaxTokens: 16, Temperature: 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Q:B" {
		t.Fatalf("text = %q, want %q", res.Text, "Q:B")
	}
	if sp.Active() != 0 {
		t.Fatal("self-prompt state not released after request")
	}
}

func TestGenerateErasedExchange(t *testing.T) {
	t.Parallel()
	backend, err := toy.NewBackend(byteTok, toy.Options{Seed: 3, Script: "Q:A\n"})
	if err != nil {
		t.Fatal(err)
	}
	sp, err := New(Config{Prompt: "Q:", Strategy: strategy.Choices{Alternatives: []string{"A", "B"}}, Erase: ErasePrompt, Suffix: "\n"})
	if err != nil {
		t.Fatal(err)
	}
	reg := mods.NewRegistry(mods.Options{Logger: logger.Discard()})
	reg.Register(sp)
	eng := &inference.Engine{Backend: backend, Tokenizer: byteTok, Mods: reg, Logger: logger.Discard()}

	res, err := eng.Generate(context.Background(), "gen", nil, inference.Config{MaxTokens: 8, Temperature: 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata.Backtracks != 1 {
		t.Fatalf("backtracks = %d, want 1", res.Metadata.Backtracks)
	}
	if len(res.Text) == 0 || res.Text[0] != 'A' {
		t.Fatalf("text = %q, want the reinjected answer first", res.Text)
	}
}
