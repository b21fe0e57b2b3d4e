package strategy

import (
	"strings"

	"github.com/samcharles93/steer/internal/tokenizer"
)

// Until lets the model write freely until Stop appears. With AnyChar set the
// answer ends at the first occurrence of any character of Stop instead of the
// whole string. A non-empty Start is forced before free generation begins.
type Until struct {
	Start   string
	Stop    string
	AnyChar bool
}

type untilAutomaton struct {
	spec   Until
	tok    tokenizer.Tokenizer
	prefix []int
}

func (u Until) Compile(tok tokenizer.Tokenizer) (Automaton, error) {
	if u.Stop == "" {
		return nil, invalid("until: stop must be set")
	}
	prefix, err := encode(tok, u.Start)
	if err != nil {
		return nil, err
	}
	return &untilAutomaton{spec: u, tok: tok, prefix: prefix}, nil
}

func (a *untilAutomaton) Start() Cursor {
	return &untilCursor{a: a}
}

func (a *untilAutomaton) Trim(answer string) string { return answer }

type untilCursor struct {
	a     *untilAutomaton
	seen  int
	accum strings.Builder
	done  bool
}

func (c *untilCursor) Constraint() Constraint {
	if c.done {
		return Only()
	}
	if c.seen < len(c.a.prefix) {
		return Only(c.a.prefix[c.seen])
	}
	return Constraint{Denied: []int{c.a.tok.EOS()}}
}

func (c *untilCursor) Advance(tok int) {
	if c.done {
		return
	}
	c.seen++
	if c.seen <= len(c.a.prefix) {
		return
	}
	c.accum.WriteString(tokenizer.TokenText(c.a.tok, tok))
	text := c.accum.String()
	if c.a.spec.AnyChar {
		c.done = strings.ContainsAny(text, c.a.spec.Stop)
	} else {
		c.done = strings.Contains(text, c.a.spec.Stop)
	}
}

func (c *untilCursor) Done() bool { return c.done }
