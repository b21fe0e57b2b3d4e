package strategy

import (
	"slices"

	"github.com/samcharles93/steer/internal/tokenizer"
)

// Tokens picks exactly one token from a fixed set. Every item must encode to
// a single token.
type Tokens struct {
	Items []string
}

type tokensAutomaton struct {
	ids []int
}

func (t Tokens) Compile(tok tokenizer.Tokenizer) (Automaton, error) {
	if len(t.Items) == 0 {
		return nil, invalid("tokens: items must be non-empty")
	}
	var ids []int
	for _, item := range t.Items {
		seq, err := encode(tok, item)
		if err != nil {
			return nil, err
		}
		if len(seq) != 1 {
			return nil, invalid("tokens: item %q must map to exactly one token, got %d", item, len(seq))
		}
		if !slices.Contains(ids, seq[0]) {
			ids = append(ids, seq[0])
		}
	}
	return &tokensAutomaton{ids: ids}, nil
}

func (a *tokensAutomaton) Start() Cursor            { return &tokensCursor{ids: a.ids} }
func (a *tokensAutomaton) Trim(answer string) string { return answer }

type tokensCursor struct {
	ids  []int
	done bool
}

func (c *tokensCursor) Constraint() Constraint {
	if c.done {
		return Only()
	}
	return Only(c.ids...)
}

func (c *tokensCursor) Advance(int) { c.done = true }
func (c *tokensCursor) Done() bool  { return c.done }
