package strategy

import (
	"errors"
	"testing"
)

func TestListWrappedChoices(t *testing.T) {
	t.Parallel()

	a := compile(t, List{
		Element: Choices{Alternatives: []string{"a", "b"}},
		Open:    "[",
		Close:   "]",
		Wrap:    `"`,
		Max:     2,
	})
	c := a.Start()

	walk(t, c, `["a"`)
	if got := allowedText(c.Constraint()); got != ",]" {
		t.Fatalf("after first element allowed %q, want %q", got, ",]")
	}
	walk(t, c, `, "b"`)
	if got := allowedText(c.Constraint()); got != "]" {
		t.Fatalf("at max allowed %q, want %q", got, "]")
	}
	walk(t, c, "]")
	if !c.Done() {
		t.Fatal("list not done after close")
	}
	if c.(*ListCursor).Completed() != 2 {
		t.Fatalf("completed = %d, want 2", c.(*ListCursor).Completed())
	}
}

func TestListMinHoldsClose(t *testing.T) {
	t.Parallel()

	c := compile(t, List{
		Element: Chars{Mode: ModeNumeric, MaxLength: 1},
		Close:   ")",
		Sep:     Separator(","),
		Min:     2,
	}).Start()

	if c.Constraint().Permits(')') {
		t.Fatal("close permitted below min")
	}
	walk(t, c, "1")
	if got := allowedText(c.Constraint()); got != "," {
		t.Fatalf("below min allowed %q", got)
	}
	walk(t, c, ",2")
	if got := allowedText(c.Constraint()); got != ")," {
		t.Fatalf("at min allowed %q", got)
	}
	walk(t, c, ")")
	if !c.Done() {
		t.Fatal("not done")
	}
}

func TestListPositionalWithEndWith(t *testing.T) {
	t.Parallel()

	c := compile(t, List{
		Elements: []Spec{
			Choices{Alternatives: []string{"x"}},
			Choices{Alternatives: []string{"y"}},
		},
		Sep:     Separator("-"),
		EndWith: ".",
	}).Start()

	walk(t, c, "x-y")
	if got := allowedText(c.Constraint()); got != "." {
		t.Fatalf("after elements allowed %q", got)
	}
	walk(t, c, ".")
	if !c.Done() {
		t.Fatal("not done after end_with")
	}
}

func TestListRefreshPendingElement(t *testing.T) {
	t.Parallel()

	c := compile(t, List{
		Elements: []Spec{
			Choices{Alternatives: []string{"x"}},
			Choices{Alternatives: []string{"y"}},
		},
		Sep: Separator(""),
	}).Start().(*ListCursor)

	walk(t, c, "x")
	if err := c.Refresh(1, compile(t, Choices{Alternatives: []string{"z", "w"}})); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := allowedText(c.Constraint()); got != "wz" {
		t.Fatalf("after refresh allowed %q, want %q", got, "wz")
	}
	walk(t, c, "z")
	if !c.Done() {
		t.Fatal("not done")
	}
	if err := c.Refresh(0, compile(t, Choices{Alternatives: []string{"q"}})); !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("refresh of completed element: got %v", err)
	}
}

func TestListRefreshReplaysElementInProgress(t *testing.T) {
	t.Parallel()

	c := compile(t, List{
		Element: Choices{Alternatives: []string{"abc"}},
		Close:   "]",
		Max:     3,
	}).Start().(*ListCursor)

	walk(t, c, "a")
	if err := c.Refresh(0, compile(t, Choices{Alternatives: []string{"abd", "xyz"}})); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := allowedText(c.Constraint()); got != "b" {
		t.Fatalf("after replay allowed %q, want %q", got, "b")
	}
	walk(t, c, "bd")
	if c.Completed() != 1 {
		t.Fatalf("completed = %d, want 1", c.Completed())
	}
	// later elements still use the original strategy
	walk(t, c, ", abc")
	if c.Completed() != 2 {
		t.Fatalf("completed = %d, want 2", c.Completed())
	}
}

func TestListCompileErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		spec List
	}{
		{name: "no-element", spec: List{Close: "]"}},
		{name: "unbounded-without-close", spec: List{Element: Choices{Alternatives: []string{"a"}}}},
		{name: "min-over-max", spec: List{Element: Choices{Alternatives: []string{"a"}}, Min: 3, Max: 2, Close: "]"}},
		{name: "bad-element", spec: List{Elements: []Spec{Tokens{}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.spec.Compile(tok); !errors.Is(err, ErrInvalidStrategy) {
				t.Fatalf("got %v, want ErrInvalidStrategy", err)
			}
		})
	}
}
