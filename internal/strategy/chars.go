package strategy

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samcharles93/steer/internal/tokenizer"
)

// CharsMode selects the character class Chars accepts.
type CharsMode int

const (
	ModeAlpha CharsMode = iota
	ModeAlnum
	ModeNumeric
	ModeString
	ModeFloat
)

var modeNames = map[CharsMode]string{
	ModeAlpha:   "alpha",
	ModeAlnum:   "alnum",
	ModeNumeric: "numeric",
	ModeString:  "string",
	ModeFloat:   "float",
}

func (m CharsMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("CharsMode(%d)", int(m))
}

// ParseCharsMode accepts the names printed by CharsMode.String plus a few
// aliases.
func ParseCharsMode(s string) (CharsMode, error) {
	switch strings.ToLower(s) {
	case "alpha":
		return ModeAlpha, nil
	case "alnum", "alphanumeric":
		return ModeAlnum, nil
	case "numeric", "digits":
		return ModeNumeric, nil
	case "string":
		return ModeString, nil
	case "float", "js_float":
		return ModeFloat, nil
	}
	return 0, invalid("chars: unknown mode %q", s)
}

// Chars constrains the answer to a character class, ending after MaxLength
// characters or at the Stop string, whichever is configured. At least one of
// the two must be set. MinLength delays the stop string. End-of-sequence is
// never allowed while the answer is open.
type Chars struct {
	Mode        CharsMode
	MaxLength   int
	MinLength   int
	Stop        string
	IncludeStop bool
}

type charsAutomaton struct {
	spec      Chars
	eos       int
	stopToken int
	// length of each usable token's text in characters
	length map[int]int
	// ids matching the mode, with and without the stop string
	plain    []int
	withStop []int
	// float classes
	digits, periods, minus, exps []int
}

func (c Chars) Compile(tok tokenizer.Tokenizer) (Automaton, error) {
	if c.MaxLength <= 0 && c.Stop == "" {
		return nil, invalid("chars: need max length or stop string")
	}
	if c.MaxLength > 0 && c.MinLength > c.MaxLength {
		return nil, invalid("chars: min length %d exceeds max length %d", c.MinLength, c.MaxLength)
	}
	a := &charsAutomaton{
		spec:      c,
		eos:       tok.EOS(),
		stopToken: -1,
		length:    map[int]int{},
	}
	if c.Stop != "" {
		ids, err := encode(tok, c.Stop)
		if err != nil {
			return nil, err
		}
		a.stopToken = ids[0]
	}

	for id := 0; id < tok.VocabSize(); id++ {
		if id == a.eos {
			continue
		}
		text := tokenizer.TokenText(tok, id)
		if text == "" {
			continue
		}
		n := utf8.RuneCountInString(text)
		if c.Mode == ModeFloat {
			switch {
			case isDigits(text):
				a.digits = append(a.digits, id)
			case text == ".":
				a.periods = append(a.periods, id)
			case text == "-":
				a.minus = append(a.minus, id)
			case text == "e" || text == "E":
				a.exps = append(a.exps, id)
			default:
				continue
			}
			a.length[id] = n
			continue
		}
		switch {
		case c.Stop != "" && strings.Contains(text, c.Stop):
			if before, _, _ := strings.Cut(text, c.Stop); before == "" || c.matches(before) {
				a.withStop = append(a.withStop, id)
				a.length[id] = n
			}
		case c.matches(text):
			a.plain = append(a.plain, id)
			a.length[id] = n
		}
	}
	return a, nil
}

func (c Chars) matches(text string) bool {
	switch c.Mode {
	case ModeAlpha:
		return allRunes(text, unicode.IsLetter)
	case ModeAlnum:
		return allRunes(text, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
	case ModeNumeric:
		return isDigits(text)
	case ModeString:
		return !hasUnescapedQuote(text)
	}
	return false
}

func allRunes(s string, f func(rune) bool) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if !f(r) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	return allRunes(s, func(r rune) bool { return r >= '0' && r <= '9' })
}

func hasUnescapedQuote(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '"' && (i == 0 || s[i-1] != '\\') {
			return true
		}
	}
	return false
}

func (a *charsAutomaton) Start() Cursor {
	return &charsCursor{a: a}
}

func (a *charsAutomaton) Trim(answer string) string {
	if a.spec.Stop == "" || a.spec.IncludeStop {
		return answer
	}
	if before, _, found := strings.Cut(answer, a.spec.Stop); found {
		return before
	}
	return answer
}

type charsCursor struct {
	a     *charsAutomaton
	count int
	done  bool

	started     bool
	seenDecimal bool
	seenExp     bool
	afterExp    bool
}

func (c *charsCursor) fits(id int) bool {
	if c.a.spec.MaxLength <= 0 {
		return true
	}
	return c.a.length[id] <= c.a.spec.MaxLength-c.count
}

func (c *charsCursor) Constraint() Constraint {
	if c.done {
		return Only()
	}
	allowed := []int{}
	add := func(ids []int) {
		for _, id := range ids {
			if c.fits(id) {
				allowed = append(allowed, id)
			}
		}
	}

	if c.a.spec.Mode == ModeFloat {
		add(c.a.digits)
		if !c.seenDecimal && c.started {
			add(c.a.periods)
		}
		if !c.seenExp && c.started {
			add(c.a.exps)
		}
		if !c.started || c.afterExp {
			add(c.a.minus)
		}
	} else {
		add(c.a.plain)
	}

	if c.a.stopToken >= 0 && c.count >= c.a.spec.MinLength {
		allowed = append(allowed, c.a.withStop...)
		allowed = append(allowed, c.a.stopToken)
	}
	return Constraint{Allowed: allowed, Denied: []int{c.a.eos}}
}

func (c *charsCursor) Advance(tok int) {
	if c.done {
		return
	}
	stop := c.a.spec.Stop
	if stop != "" && (tok == c.a.stopToken || containsID(c.a.withStop, tok)) {
		c.done = true
		return
	}

	if c.a.spec.Mode == ModeFloat {
		switch {
		case containsID(c.a.digits, tok):
			c.started = true
			c.afterExp = false
		case containsID(c.a.periods, tok):
			c.seenDecimal = true
		case containsID(c.a.exps, tok):
			c.seenExp = true
			c.afterExp = true
		case containsID(c.a.minus, tok):
			c.afterExp = false
		}
	}
	c.count += c.a.length[tok]

	if c.a.spec.MaxLength > 0 && c.count >= c.a.spec.MaxLength {
		c.done = true
		return
	}
	if c.Constraint().Empty() {
		c.done = true
	}
}

func (c *charsCursor) Done() bool { return c.done }

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
