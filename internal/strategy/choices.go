package strategy

import (
	"slices"

	"github.com/samcharles93/steer/internal/tokenizer"
)

// Choices restricts the answer to one of a fixed set of strings. Multi-token
// alternatives are walked through a trie of their token sequences.
//
// An alternative whose tokens are a strict prefix of another resolves as soon
// as it is complete, so the longer alternative is unreachable.
type Choices struct {
	Alternatives []string
}

type trieNode struct {
	children map[int]*trieNode
	keys     []int
	terminal bool
}

func (n *trieNode) insert(seq []int) {
	node := n
	for _, id := range seq {
		child, ok := node.children[id]
		if !ok {
			child = &trieNode{children: map[int]*trieNode{}}
			node.children[id] = child
			node.keys = append(node.keys, id)
		}
		node = child
	}
	node.terminal = true
}

type choicesAutomaton struct {
	root *trieNode
}

func (c Choices) Compile(tok tokenizer.Tokenizer) (Automaton, error) {
	root := &trieNode{children: map[int]*trieNode{}}
	n := 0
	for _, alt := range c.Alternatives {
		ids, err := encode(tok, alt)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}
		root.insert(ids)
		n++
	}
	if n == 0 {
		return nil, invalid("choices: no non-empty alternatives")
	}
	return &choicesAutomaton{root: root}, nil
}

func (a *choicesAutomaton) Start() Cursor {
	return &choicesCursor{active: []*trieNode{a.root}}
}

func (a *choicesAutomaton) Trim(answer string) string { return answer }

type choicesCursor struct {
	active  []*trieNode
	done    bool
	matched bool
}

func (c *choicesCursor) Constraint() Constraint {
	if c.done {
		return Only()
	}
	allowed := []int{}
	for _, n := range c.active {
		for _, k := range n.keys {
			if !slices.Contains(allowed, k) {
				allowed = append(allowed, k)
			}
		}
	}
	return Constraint{Allowed: allowed}
}

func (c *choicesCursor) Advance(tok int) {
	if c.done {
		return
	}
	var next []*trieNode
	for _, n := range c.active {
		if child, ok := n.children[tok]; ok && !slices.Contains(next, child) {
			next = append(next, child)
		}
	}
	c.active = next
	if len(next) == 0 {
		// off-trie token; nothing can match any more
		c.done = true
		return
	}
	for _, n := range next {
		if !n.terminal {
			return
		}
	}
	c.done = true
	c.matched = true
}

func (c *choicesCursor) Done() bool { return c.done }

// Matched reports whether the walk ended on a complete alternative.
func (c *choicesCursor) Matched() bool { return c.matched }
