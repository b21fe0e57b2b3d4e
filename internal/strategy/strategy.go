// Package strategy compiles declarative answer shapes into token-level
// automata. A compiled Automaton is immutable and shared; each answer walks
// it with its own Cursor.
package strategy

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/steer/internal/logits"
	"github.com/samcharles93/steer/internal/tokenizer"
)

var ErrInvalidStrategy = errors.New("invalid strategy")

// Spec describes an answer shape. Implemented by Choices, Chars, Until,
// List and Tokens.
type Spec interface {
	Compile(tok tokenizer.Tokenizer) (Automaton, error)
}

// Automaton is a compiled Spec.
type Automaton interface {
	Start() Cursor
	// Trim post-processes the decoded answer, for example removing a stop
	// string.
	Trim(answer string) string
}

// Cursor tracks one walk through an Automaton.
type Cursor interface {
	Constraint() Constraint
	Advance(tok int)
	Done() bool
}

// Refresher is implemented by cursors whose sub-automata can be swapped
// mid-walk.
type Refresher interface {
	Refresh(idx int, a Automaton) error
}

// Constraint is the token set allowed at the next step. A nil Allowed means
// every token; Denied always wins.
type Constraint struct {
	Allowed []int
	Denied  []int
}

// Only allows exactly ids.
func Only(ids ...int) Constraint {
	if ids == nil {
		ids = []int{}
	}
	return Constraint{Allowed: ids}
}

// Apply returns a masked copy of in.
func (c Constraint) Apply(in []float32) []float32 {
	return logits.Mask(in, c.Allowed, c.Denied)
}

// Permits reports whether tok may be emitted.
func (c Constraint) Permits(tok int) bool {
	if slices.Contains(c.Denied, tok) {
		return false
	}
	return c.Allowed == nil || slices.Contains(c.Allowed, tok)
}

// Empty reports whether nothing is allowed.
func (c Constraint) Empty() bool {
	return c.Allowed != nil && len(c.Allowed) == 0
}

// with adds tok to the allowed set.
func (c Constraint) with(tok int) Constraint {
	out := Constraint{}
	if c.Allowed != nil {
		out.Allowed = append(slices.Clip(c.Allowed), tok)
	}
	for _, d := range c.Denied {
		if d != tok {
			out.Denied = append(out.Denied, d)
		}
	}
	return out
}

func encode(tok tokenizer.Tokenizer, text string) ([]int, error) {
	if text == "" {
		return nil, nil
	}
	ids, err := tok.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", text, err)
	}
	return ids, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStrategy, fmt.Sprintf(format, args...))
}
