// Package flow chains self-prompts into a question graph. Each question is a
// constrained exchange; its answer picks the next question or a final
// disposition such as a forced output or a tool call.
package flow

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/samcharles93/steer/internal/selfprompt"
	"github.com/samcharles93/steer/internal/strategy"
)

var ErrInvalidFlow = errors.New("invalid flow")

// Question is one node of a flow.
type Question struct {
	Name     string
	Prompt   string
	Strategy strategy.Spec
	Suffix   string
	Erase    selfprompt.EraseMode
	Argmax   bool

	// Transitions are keyed by answer, compared case-insensitively after
	// trimming space.
	Transitions map[string]Route
	Default     Route
	// Router is consulted when neither a transition nor Default applies.
	Router func(st *RequestState, answer string) (Route, bool)
	// Assign runs before routing, typically to copy the answer into Data.
	Assign func(st *RequestState, answer string)
}

// On adds a transition and returns q.
func (q *Question) On(answer string, r Route) *Question {
	if q.Transitions == nil {
		q.Transitions = make(map[string]Route)
	}
	q.Transitions[normalize(answer)] = r
	return q
}

// Otherwise sets the default route and returns q.
func (q *Question) Otherwise(r Route) *Question {
	q.Default = r
	return q
}

func (q *Question) resolve(st *RequestState, answer string) Route {
	if r, ok := q.Transitions[normalize(answer)]; ok {
		return r
	}
	if q.Default.IsSet() {
		return q.Default
	}
	if q.Router != nil {
		if r, ok := q.Router(st, answer); ok {
			return r
		}
	}
	return Route{}
}

func normalize(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// Definition is a flow: Questions[0] is asked first.
type Definition struct {
	Name      string
	Questions []*Question
	// Summary builds the text for Summary routes.
	Summary func(st *RequestState) string
}

// Step records one resolved question.
type Step struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Erased   int       `json:"erased"`
	Route    RouteKind `json:"route"`
}

// RequestState is a flow's per-request record.
type RequestState struct {
	RequestID string
	// Current is the index of the active question, or -1 between questions
	// and after the flow ends.
	Current int
	Answers map[string]string
	// Data is a free-form bag for Assign hooks and routers.
	Data map[string]any
	// Position is the visible context length seen by the flow. Baseline is
	// Position when the current question started.
	Position int
	Baseline int
	History  []Step

	pending *Route
}

func newRequestState(requestID string) *RequestState {
	return &RequestState{
		RequestID: requestID,
		Answers:   make(map[string]string),
		Data:      make(map[string]any),
	}
}

func (st *RequestState) clone() RequestState {
	out := *st
	out.Answers = maps.Clone(st.Answers)
	out.Data = maps.Clone(st.Data)
	out.History = slices.Clone(st.History)
	out.pending = nil
	return out
}

func (d *Definition) validate() (map[string]int, error) {
	if len(d.Questions) == 0 {
		return nil, fmt.Errorf("%w: %q has no questions", ErrInvalidFlow, d.Name)
	}
	index := make(map[string]int, len(d.Questions))
	for i, q := range d.Questions {
		if q == nil || q.Name == "" {
			return nil, fmt.Errorf("%w: question %d has no name", ErrInvalidFlow, i)
		}
		if _, dup := index[q.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate question %q", ErrInvalidFlow, q.Name)
		}
		index[q.Name] = i
	}
	for _, q := range d.Questions {
		routes := slices.Collect(maps.Values(q.Transitions))
		routes = append(routes, q.Default)
		for _, r := range routes {
			if _, err := target(index, len(d.Questions), r); err != nil {
				return nil, fmt.Errorf("question %q: %w", q.Name, err)
			}
		}
	}
	return index, nil
}

// target resolves a moving route to a question index.
func target(index map[string]int, n int, r Route) (int, error) {
	switch r.Kind {
	case RouteNext:
		i, ok := index[r.Target]
		if !ok {
			return 0, fmt.Errorf("%w: unknown question %q", ErrInvalidFlow, r.Target)
		}
		return i, nil
	case RouteGoto:
		if r.Index < 0 || r.Index >= n {
			return 0, fmt.Errorf("%w: question index %d out of range", ErrInvalidFlow, r.Index)
		}
		return r.Index, nil
	case RouteTool:
		if r.Tool == nil {
			return 0, fmt.Errorf("%w: tool route without a callback", ErrInvalidFlow)
		}
	}
	return -1, nil
}
