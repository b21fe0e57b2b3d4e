// Package selfprompt embeds a constrained question/answer exchange in a
// request's token stream: the prompt is forced, the answer is sampled under a
// strategy mask, an optional suffix is forced, and the round trip is then
// optionally erased with a single backtrack.
package selfprompt

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/mods"
	"github.com/samcharles93/steer/internal/strategy"
	"github.com/samcharles93/steer/internal/tokenizer"
)

// Config describes one self-prompt.
type Config struct {
	Name string
	// Prompt is tokenized per request. PromptTokens, when set, is used as is.
	Prompt       string
	PromptTokens []int
	Strategy     strategy.Spec
	// Suffix is forced after the answer. It is skipped under EraseAll and
	// when the strategy is a List with EndWith.
	Suffix string
	Erase  EraseMode
	// Argmax samples the answer greedily.
	Argmax bool
}

// SelfPrompt is a mods.Mod. One instance serves many requests; state is
// keyed by request id.
type SelfPrompt struct {
	name string

	mu     sync.Mutex
	cfg    Config
	states map[string]*state
}

type state struct {
	mu sync.Mutex

	tok    tokenizer.Tokenizer
	auto   strategy.Automaton
	cursor strategy.Cursor
	phase  Phase

	promptToks []int
	suffixToks []int
	answer     []int
	answerText string

	outstanding int
	promptCount int
	answerCount int
	suffixCount int

	erase *mods.Backtrack
}

// Snapshot is a copy of one request's progress.
type Snapshot struct {
	Phase       Phase
	PromptCount int
	AnswerCount int
	SuffixCount int
	Answer      string
	// Erase is the backtrack issued when the exchange was erased, if any.
	Erase *mods.Backtrack
}

// Erased is the total context length the exchange occupied.
func (s Snapshot) Erased() int { return s.PromptCount + s.AnswerCount + s.SuffixCount }

// New validates cfg.
func New(cfg Config) (*SelfPrompt, error) {
	if cfg.Strategy == nil {
		return nil, malformed("strategy", "no strategy")
	}
	if !cfg.Erase.valid() {
		return nil, malformed("erase", "unknown erase mode %d", int(cfg.Erase))
	}
	if !utf8.ValidString(cfg.Suffix) {
		return nil, malformed("completion", "suffix is not valid UTF-8 text")
	}
	if !utf8.ValidString(cfg.Prompt) {
		return nil, malformed("prompt", "prompt is not valid UTF-8 text")
	}
	name := cfg.Name
	if name == "" {
		name = "selfprompt"
	}
	cfg.PromptTokens = slices.Clone(cfg.PromptTokens)
	return &SelfPrompt{
		name:   name,
		cfg:    cfg,
		states: make(map[string]*state),
	}, nil
}

func (sp *SelfPrompt) Name() string { return sp.name }

// Config returns the current configuration.
func (sp *SelfPrompt) Config() Config {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.cfg
}

// Start compiles the strategy for requestID and resets its exchange to the
// beginning. A request can run the same self-prompt again after Start.
func (sp *SelfPrompt) Start(requestID string, tok tokenizer.Tokenizer) error {
	sp.mu.Lock()
	cfg := sp.cfg
	sp.mu.Unlock()

	auto, err := cfg.Strategy.Compile(tok)
	if err != nil {
		return fmt.Errorf("%s: compile strategy: %w", sp.name, err)
	}
	st := &state{tok: tok, auto: auto, cursor: auto.Start()}
	switch {
	case cfg.PromptTokens != nil:
		st.promptToks = slices.Clone(cfg.PromptTokens)
	case cfg.Prompt != "":
		if st.promptToks, err = tok.Encode(cfg.Prompt); err != nil {
			return fmt.Errorf("%s: encode prompt: %w", sp.name, err)
		}
	}
	if cfg.Suffix != "" && cfg.Erase != EraseAll && !hasEndWith(cfg.Strategy) {
		if st.suffixToks, err = tok.Encode(cfg.Suffix); err != nil {
			return fmt.Errorf("%s: encode suffix: %w", sp.name, err)
		}
	}

	sp.mu.Lock()
	sp.states[requestID] = st
	sp.mu.Unlock()
	return nil
}

func hasEndWith(s strategy.Spec) bool {
	switch l := s.(type) {
	case strategy.List:
		return l.EndWith != ""
	case *strategy.List:
		return l != nil && l.EndWith != ""
	}
	return false
}

func (sp *SelfPrompt) lookup(requestID string) *state {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.states[requestID]
}

// Handle drives the exchange for ev's request.
func (sp *SelfPrompt) Handle(ctx context.Context, ev mods.Event, tok tokenizer.Tokenizer) (mods.Action, error) {
	rid := ev.Base().RequestID
	log := logger.FromContext(ctx)

	if _, ok := ev.(mods.Prefilled); ok {
		return mods.Noop{}, sp.Start(rid, tok)
	}

	st := sp.lookup(rid)
	if st == nil {
		if err := sp.Start(rid, tok); err != nil {
			return nil, err
		}
		st = sp.lookup(rid)
	}

	cfg := sp.Config()
	st.mu.Lock()
	defer st.mu.Unlock()
	before := st.phase

	var (
		act mods.Action
		err error
	)
	switch e := ev.(type) {
	case mods.ForwardPass:
		act = st.forward(e, cfg.Erase, cfg.Argmax)
	case mods.Added:
		err = st.added(e)
	}
	if st.phase != before {
		log.Debug("self-prompt phase", "from", before.String(), "to", st.phase.String())
	}
	if act == nil {
		act = mods.Noop{}
	}
	return act, err
}

func (st *state) forward(ev mods.ForwardPass, erase EraseMode, argmax bool) mods.Action {
	for {
		switch st.phase {
		case PhaseInjectPrompt:
			if len(st.promptToks) == 0 {
				st.phase = PhaseConstrain
				continue
			}
			st.phase = PhaseAwaitPrompt
			st.outstanding = len(st.promptToks)
			return mods.ForceTokens{Tokens: slices.Clone(st.promptToks)}

		case PhaseConstrain:
			if st.cursor.Done() {
				st.finishAnswer()
				continue
			}
			a := mods.AdjustedLogits{Logits: st.cursor.Constraint().Apply(ev.Logits)}
			if argmax {
				a.Temperature = mods.Temperature(0)
			}
			return a

		case PhaseInjectSuffix:
			st.phase = PhaseAwaitSuffix
			st.outstanding = len(st.suffixToks)
			return mods.ForceTokens{Tokens: slices.Clone(st.suffixToks)}

		case PhaseErase:
			st.phase = PhaseDone
			n := st.promptCount + st.answerCount + st.suffixCount
			switch erase {
			case ErasePrompt:
				st.erase = &mods.Backtrack{N: n, Tokens: slices.Clone(st.answer)}
			case EraseAll:
				st.erase = &mods.Backtrack{N: n}
			default:
				return nil
			}
			return *st.erase

		default:
			return nil
		}
	}
}

func (st *state) added(ev mods.Added) error {
	switch st.phase {
	case PhaseAwaitPrompt:
		if !ev.Forced {
			return nil
		}
		st.promptCount += len(ev.AddedTokens)
		st.outstanding -= len(ev.AddedTokens)
		if st.outstanding <= 0 {
			st.phase = PhaseConstrain
		}

	case PhaseConstrain:
		for _, id := range ev.AddedTokens {
			if !st.cursor.Done() {
				st.cursor.Advance(id)
			}
			st.answer = append(st.answer, id)
			st.answerCount++
		}
		if st.cursor.Done() {
			st.finishAnswer()
		}

	case PhaseAwaitSuffix:
		if !ev.Forced {
			return nil
		}
		st.suffixCount += len(ev.AddedTokens)
		st.outstanding -= len(ev.AddedTokens)
		if st.outstanding <= 0 {
			st.phase = PhaseErase
		}
	}
	return nil
}

func (st *state) finishAnswer() {
	text, err := st.tok.Decode(st.answer)
	if err == nil {
		st.answerText = st.auto.Trim(text)
	}
	if len(st.suffixToks) > 0 {
		st.phase = PhaseInjectSuffix
	} else {
		st.phase = PhaseErase
	}
}

// State returns a snapshot of requestID's exchange.
func (sp *SelfPrompt) State(requestID string) (Snapshot, bool) {
	st := sp.lookup(requestID)
	if st == nil {
		return Snapshot{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := Snapshot{
		Phase:       st.phase,
		PromptCount: st.promptCount,
		AnswerCount: st.answerCount,
		SuffixCount: st.suffixCount,
		Answer:      st.answerText,
	}
	if st.erase != nil {
		b := *st.erase
		b.Tokens = slices.Clone(b.Tokens)
		snap.Erase = &b
	}
	return snap, true
}

// Answer returns the trimmed answer once the strategy has finished.
func (sp *SelfPrompt) Answer(requestID string) (string, bool) {
	snap, ok := sp.State(requestID)
	if !ok || snap.Phase < PhaseInjectSuffix {
		return "", false
	}
	return snap.Answer, true
}

// Reset forgets requestID's exchange.
func (sp *SelfPrompt) Reset(requestID string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	delete(sp.states, requestID)
}

// Finish implements mods.Finisher.
func (sp *SelfPrompt) Finish(requestID string) { sp.Reset(requestID) }

// Active reports how many requests hold state.
func (sp *SelfPrompt) Active() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.states)
}
