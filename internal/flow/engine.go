package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/mods"
	"github.com/samcharles93/steer/internal/selfprompt"
	"github.com/samcharles93/steer/internal/tokenizer"
)

const defaultSummary = "Flow complete."

type entry struct {
	mu sync.Mutex
	st *RequestState
}

// Engine runs a Definition as a mods.Mod.
type Engine struct {
	def     *Definition
	index   map[string]int
	prompts []*selfprompt.SelfPrompt

	mu       sync.Mutex
	requests map[string]*entry
}

// New validates def and compiles a self-prompt for every question, so a
// malformed question fails here rather than mid-request.
func New(def *Definition) (*Engine, error) {
	index, err := def.validate()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		def:      def,
		index:    index,
		requests: make(map[string]*entry),
	}
	for _, q := range def.Questions {
		sp, err := selfprompt.New(selfprompt.Config{
			Name:     def.Name + "/" + q.Name,
			Prompt:   q.Prompt,
			Strategy: q.Strategy,
			Suffix:   q.Suffix,
			Erase:    q.Erase,
			Argmax:   q.Argmax,
		})
		if err != nil {
			return nil, fmt.Errorf("question %q: %w", q.Name, err)
		}
		e.prompts = append(e.prompts, sp)
	}
	return e, nil
}

func (e *Engine) Name() string { return "flow:" + e.def.Name }

// Prompt returns the self-prompt compiled for question name, for example to
// refresh its responses.
func (e *Engine) Prompt(name string) (*selfprompt.SelfPrompt, bool) {
	i, ok := e.index[name]
	if !ok {
		return nil, false
	}
	return e.prompts[i], true
}

// State returns a copy of requestID's flow record while its flow is running.
// The record is dropped once a route ends the flow, or when the request
// finishes.
func (e *Engine) State(requestID string) (RequestState, bool) {
	en := e.lookup(requestID)
	if en == nil {
		return RequestState{}, false
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.st.clone(), true
}

// Finish implements mods.Finisher.
func (e *Engine) Finish(requestID string) {
	e.mu.Lock()
	delete(e.requests, requestID)
	e.mu.Unlock()
	for _, sp := range e.prompts {
		sp.Finish(requestID)
	}
}

func (e *Engine) lookup(requestID string) *entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[requestID]
}

// Handle implements mods.Mod.
func (e *Engine) Handle(ctx context.Context, ev mods.Event, tok tokenizer.Tokenizer) (mods.Action, error) {
	rid := ev.Base().RequestID

	if _, ok := ev.(mods.Prefilled); ok {
		st := newRequestState(rid)
		e.mu.Lock()
		e.requests[rid] = &entry{st: st}
		e.mu.Unlock()
		return mods.Noop{}, e.begin(st, 0, tok)
	}

	en := e.lookup(rid)
	if en == nil {
		return mods.Noop{}, nil
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	st := en.st
	log := logger.FromContext(ctx)

	switch ev := ev.(type) {
	case mods.ForwardPass:
		act, err := e.forward(ctx, st, ev, tok)
		if err == nil && st.Current < 0 && st.pending == nil {
			e.drop(rid, en)
		}
		return act, err

	case mods.Added:
		st.Position += len(ev.AddedTokens)
		if st.Current < 0 {
			return mods.Noop{}, nil
		}
		return e.prompts[st.Current].Handle(ctx, ev, tok)

	default:
		log.Debug("flow ignoring event", "event", ev.Kind().String())
	}
	return mods.Noop{}, nil
}

func (e *Engine) forward(ctx context.Context, st *RequestState, ev mods.ForwardPass, tok tokenizer.Tokenizer) (mods.Action, error) {
	if st.pending != nil {
		r := *st.pending
		st.pending = nil
		return e.perform(ctx, st, ev, tok, r)
	}
	if st.Current < 0 {
		return mods.Noop{}, nil
	}
	act, err := e.prompts[st.Current].Handle(ctx, ev, tok)
	if err != nil {
		return nil, err
	}
	return e.advance(ctx, st, ev, tok, act)
}

// drop forgets a request whose flow has ended. Later events for it are
// ignored.
func (e *Engine) drop(requestID string, en *entry) {
	e.mu.Lock()
	if e.requests[requestID] == en {
		delete(e.requests, requestID)
	}
	e.mu.Unlock()
}

func (e *Engine) begin(st *RequestState, idx int, tok tokenizer.Tokenizer) error {
	st.Current = idx
	st.Baseline = st.Position
	return e.prompts[idx].Start(st.RequestID, tok)
}

// advance checks whether the active question has resolved; if so it records
// the answer and routes. A route following an erase is queued for the next
// forward pass so the backtrack is applied first.
func (e *Engine) advance(ctx context.Context, st *RequestState, ev mods.ForwardPass, tok tokenizer.Tokenizer, act mods.Action) (mods.Action, error) {
	sp := e.prompts[st.Current]
	snap, ok := sp.State(st.RequestID)
	if !ok || snap.Phase != selfprompt.PhaseDone {
		return act, nil
	}
	log := logger.FromContext(ctx)
	q := e.def.Questions[st.Current]

	step := Step{Question: q.Name, Answer: snap.Answer}
	if snap.Erase != nil {
		if want := st.Position - st.Baseline; snap.Erase.N != want {
			log.Warn("erase count disagrees with flow position",
				"question", q.Name, "erase", snap.Erase.N, "position", st.Position, "baseline", st.Baseline)
		}
		st.Position -= snap.Erase.N
		step.Erased = snap.Erase.N
	}

	st.Answers[q.Name] = snap.Answer
	if q.Assign != nil {
		q.Assign(st, snap.Answer)
	}
	route := q.resolve(st, snap.Answer)
	step.Route = route.Kind
	st.History = append(st.History, step)
	log.Debug("question resolved", "question", q.Name, "answer", snap.Answer, "route", route.Kind.String())

	sp.Reset(st.RequestID)
	st.Current = -1

	if _, isBacktrack := act.(mods.Backtrack); isBacktrack {
		if route.IsSet() {
			st.pending = &route
		}
		return act, nil
	}
	return e.perform(ctx, st, ev, tok, route)
}

// perform turns a route into the action for this forward pass.
func (e *Engine) perform(ctx context.Context, st *RequestState, ev mods.ForwardPass, tok tokenizer.Tokenizer, r Route) (mods.Action, error) {
	switch r.Kind {
	case RouteNext, RouteGoto:
		idx, err := target(e.index, len(e.prompts), r)
		if err != nil {
			return nil, err
		}
		if err := e.begin(st, idx, tok); err != nil {
			return nil, err
		}
		act, err := e.prompts[idx].Handle(ctx, ev, tok)
		if err != nil {
			return nil, err
		}
		return e.advance(ctx, st, ev, tok, act)

	case RouteMessage:
		ids, err := tok.Encode(r.Text)
		if err != nil || len(ids) == 0 {
			return mods.Noop{}, err
		}
		return mods.ForceTokens{Tokens: ids}, nil

	case RouteSummary:
		text := r.Text
		if e.def.Summary != nil {
			text = e.def.Summary(st)
		}
		if text == "" {
			text = defaultSummary
		}
		ids, err := tok.Encode(text)
		if err != nil {
			return nil, err
		}
		return mods.ForceOutput{Tokens: ids}, nil

	case RouteOutput:
		ids, err := tok.Encode(r.Text)
		if err != nil {
			return nil, err
		}
		return mods.ForceOutput{Tokens: ids}, nil

	case RouteTool:
		calls, err := r.Tool(st)
		if err != nil {
			return nil, fmt.Errorf("tool route: %w", err)
		}
		if len(calls) == 0 {
			return mods.Noop{}, nil
		}
		return mods.ToolCalls{Calls: calls}, nil
	}
	return mods.Noop{}, nil
}
