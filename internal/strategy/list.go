package strategy

import (
	"fmt"

	"github.com/samcharles93/steer/internal/tokenizer"
)

// DefaultSeparator is used when List.Sep is nil.
const DefaultSeparator = ", "

// List generates a delimited sequence of sub-answers, for example
// `["a", "b"]` with Open "[", Close "]", Wrap `"`.
//
// Positional Elements fix the list length to len(Elements) and constrain each
// slot with its own strategy; otherwise Element is repeated between Min and
// Max times (Max 0 is unbounded). EndWith is forced after Close.
type List struct {
	Elements []Spec
	Element  Spec
	Open     string
	Close    string
	Wrap     string
	Sep      *string
	EndWith  string
	Min      int
	Max      int
}

// Separator returns a pointer to s, for List.Sep.
func Separator(s string) *string { return &s }

type listAutomaton struct {
	open, close, wrap, sep, endWith []int
	min, max                        int
	positional                      []Automaton
	repeated                        Automaton
}

func (l List) Compile(tok tokenizer.Tokenizer) (Automaton, error) {
	a := &listAutomaton{min: l.Min, max: l.Max}
	sep := DefaultSeparator
	if l.Sep != nil {
		sep = *l.Sep
	}
	for _, part := range []struct {
		dst  *[]int
		text string
	}{
		{&a.open, l.Open}, {&a.close, l.Close}, {&a.wrap, l.Wrap}, {&a.sep, sep}, {&a.endWith, l.EndWith},
	} {
		ids, err := encode(tok, part.text)
		if err != nil {
			return nil, err
		}
		*part.dst = ids
	}

	switch {
	case len(l.Elements) > 0:
		for i, spec := range l.Elements {
			el, err := spec.Compile(tok)
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			a.positional = append(a.positional, el)
		}
		a.min, a.max = len(l.Elements), len(l.Elements)
	case l.Element != nil:
		el, err := l.Element.Compile(tok)
		if err != nil {
			return nil, fmt.Errorf("list element: %w", err)
		}
		a.repeated = el
	default:
		return nil, invalid("list: no element strategy")
	}
	if a.max > 0 && a.min > a.max {
		return nil, invalid("list: min %d exceeds max %d", a.min, a.max)
	}
	if a.max == 0 && len(a.close) == 0 {
		return nil, invalid("list: unbounded list needs a close string")
	}
	return a, nil
}

func (a *listAutomaton) Start() Cursor {
	c := &ListCursor{a: a, overrides: map[int]Automaton{}}
	if len(a.open) > 0 {
		c.phase = phaseOpen
	} else {
		c.phase = phaseAwaitElement
	}
	return c
}

func (a *listAutomaton) Trim(answer string) string { return answer }

type listPhase int

const (
	phaseOpen listPhase = iota
	phaseAwaitElement
	phaseWrapOpen
	phaseElement
	phaseWrapClose
	phaseAwaitSep
	phaseSep
	phaseClose
	phaseEndWith
	phaseDone
)

// ListCursor walks a compiled List. Its element strategies can be swapped
// with Refresh without disturbing progress through other elements.
type ListCursor struct {
	a         *listAutomaton
	overrides map[int]Automaton

	phase     listPhase
	pos       int
	completed int
	elem      Cursor
	elemToks  []int
}

func (c *ListCursor) elementAt(i int) Automaton {
	if a, ok := c.overrides[i]; ok {
		return a
	}
	if c.a.positional != nil {
		if i < len(c.a.positional) {
			return c.a.positional[i]
		}
		return nil
	}
	return c.a.repeated
}

func (c *ListCursor) underMax() bool {
	return c.a.max == 0 || c.completed < c.a.max
}

func (c *ListCursor) canClose() bool {
	return len(c.a.close) > 0 && c.completed >= c.a.min
}

// Completed reports how many elements have been finished.
func (c *ListCursor) Completed() int { return c.completed }

func (c *ListCursor) Done() bool { return c.phase == phaseDone }

func (c *ListCursor) startElement() {
	c.elem = nil
	c.elemToks = c.elemToks[:0]
	if el := c.elementAt(c.completed); el != nil {
		c.elem = el.Start()
	}
}

func (c *ListCursor) Constraint() Constraint {
	switch c.phase {
	case phaseOpen:
		return Only(c.a.open[c.pos])
	case phaseAwaitElement:
		var out Constraint
		switch {
		case !c.underMax():
			out = Only()
		case len(c.a.wrap) > 0:
			out = Only(c.a.wrap[0])
		default:
			if c.elem == nil {
				c.startElement()
			}
			if c.elem == nil {
				out = Only()
			} else {
				out = c.elem.Constraint()
			}
		}
		if c.canClose() {
			out = out.with(c.a.close[0])
		}
		return out
	case phaseWrapOpen, phaseWrapClose:
		return Only(c.a.wrap[c.pos])
	case phaseElement:
		if c.elem == nil || c.elem.Done() {
			if len(c.a.wrap) > 0 {
				return Only(c.a.wrap[0])
			}
			return Only()
		}
		return c.elem.Constraint()
	case phaseAwaitSep:
		out := Only()
		if len(c.a.sep) > 0 && c.underMax() {
			out = Only(c.a.sep[0])
		}
		if c.canClose() {
			out = out.with(c.a.close[0])
		}
		return out
	case phaseSep:
		return Only(c.a.sep[c.pos])
	case phaseClose:
		return Only(c.a.close[c.pos])
	case phaseEndWith:
		return Only(c.a.endWith[c.pos])
	}
	return Only()
}

func (c *ListCursor) Advance(tok int) {
	switch c.phase {
	case phaseOpen:
		if tok != c.a.open[c.pos] {
			return
		}
		c.pos++
		if c.pos == len(c.a.open) {
			c.pos = 0
			c.phase = phaseAwaitElement
		}

	case phaseAwaitElement:
		switch {
		case len(c.a.wrap) > 0 && tok == c.a.wrap[0] && c.underMax():
			c.pos = 1
			c.phase = phaseWrapOpen
			if c.pos == len(c.a.wrap) {
				c.enterElement()
			}
		case c.canClose() && tok == c.a.close[0]:
			c.pos = 1
			c.phase = phaseClose
			c.afterCloseToken()
		case len(c.a.wrap) == 0 && c.underMax():
			if c.elem == nil {
				c.startElement()
			}
			c.phase = phaseElement
			c.stepElement(tok)
		}

	case phaseWrapOpen:
		if tok != c.a.wrap[c.pos] {
			return
		}
		c.pos++
		if c.pos == len(c.a.wrap) {
			c.enterElement()
		}

	case phaseElement:
		if c.elem == nil || c.elem.Done() {
			if len(c.a.wrap) > 0 && tok == c.a.wrap[0] {
				c.pos = 1
				c.phase = phaseWrapClose
				if c.pos == len(c.a.wrap) {
					c.finishElement()
				}
			}
			return
		}
		c.stepElement(tok)

	case phaseWrapClose:
		if tok != c.a.wrap[c.pos] {
			return
		}
		c.pos++
		if c.pos == len(c.a.wrap) {
			c.finishElement()
		}

	case phaseAwaitSep:
		switch {
		case len(c.a.sep) > 0 && tok == c.a.sep[0] && c.underMax():
			c.pos = 1
			c.phase = phaseSep
			if c.pos == len(c.a.sep) {
				c.pos = 0
				c.phase = phaseAwaitElement
			}
		case c.canClose() && tok == c.a.close[0]:
			c.pos = 1
			c.phase = phaseClose
			c.afterCloseToken()
		}

	case phaseSep:
		if tok != c.a.sep[c.pos] {
			return
		}
		c.pos++
		if c.pos == len(c.a.sep) {
			c.pos = 0
			c.phase = phaseAwaitElement
		}

	case phaseClose:
		if tok != c.a.close[c.pos] {
			return
		}
		c.pos++
		c.afterCloseToken()

	case phaseEndWith:
		if tok != c.a.endWith[c.pos] {
			return
		}
		c.pos++
		if c.pos == len(c.a.endWith) {
			c.phase = phaseDone
		}
	}
}

func (c *ListCursor) enterElement() {
	c.pos = 0
	c.phase = phaseElement
	c.startElement()
}

func (c *ListCursor) stepElement(tok int) {
	if c.elem == nil {
		return
	}
	c.elem.Advance(tok)
	c.elemToks = append(c.elemToks, tok)
	if c.elem.Done() && len(c.a.wrap) == 0 {
		c.finishElement()
	}
}

func (c *ListCursor) finishElement() {
	c.completed++
	c.pos = 0
	c.elem = nil
	c.elemToks = c.elemToks[:0]
	switch {
	case !c.underMax():
		c.enterClose()
	case len(c.a.sep) == 0:
		c.phase = phaseAwaitElement
	default:
		c.phase = phaseAwaitSep
	}
}

func (c *ListCursor) enterClose() {
	c.pos = 0
	switch {
	case len(c.a.close) > 0:
		c.phase = phaseClose
	case len(c.a.endWith) > 0:
		c.phase = phaseEndWith
	default:
		c.phase = phaseDone
	}
}

func (c *ListCursor) afterCloseToken() {
	if c.pos < len(c.a.close) {
		return
	}
	c.pos = 0
	if len(c.a.endWith) > 0 {
		c.phase = phaseEndWith
	} else {
		c.phase = phaseDone
	}
}

// Refresh replaces the strategy for element idx on this cursor only. When
// idx is the element in progress, the tokens it already consumed are
// replayed into the new strategy. Finished elements cannot be refreshed.
func (c *ListCursor) Refresh(idx int, a Automaton) error {
	if idx < 0 || (c.a.positional != nil && idx >= len(c.a.positional)) {
		return invalid("list: element index %d out of range", idx)
	}
	if idx < c.completed {
		return invalid("list: element %d already completed", idx)
	}
	c.overrides[idx] = a
	if idx != c.completed || c.elem == nil {
		return nil
	}
	replay := append([]int(nil), c.elemToks...)
	c.elem = a.Start()
	c.elemToks = c.elemToks[:0]
	for _, tok := range replay {
		c.elem.Advance(tok)
		c.elemToks = append(c.elemToks, tok)
	}
	if c.phase == phaseElement && c.elem.Done() && len(c.a.wrap) == 0 {
		c.finishElement()
	}
	return nil
}
