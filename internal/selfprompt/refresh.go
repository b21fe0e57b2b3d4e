package selfprompt

import (
	"fmt"
	"slices"

	"github.com/samcharles93/steer/internal/strategy"
)

// RefreshResponses replaces the alternatives offered by a Choices strategy.
//
// With a List strategy, idx selects the element; for an in-flight request
// only that element's mask changes and progress is kept. With a top-level
// Choices strategy the request must not have started answering yet. An
// empty requestID updates the configuration used by later requests.
func (sp *SelfPrompt) RefreshResponses(choices []string, requestID string, idx int) error {
	spec := strategy.Choices{Alternatives: slices.Clone(choices)}

	if requestID == "" {
		sp.mu.Lock()
		defer sp.mu.Unlock()
		next, err := replaceChoices(sp.cfg.Strategy, spec, idx)
		if err != nil {
			return err
		}
		sp.cfg.Strategy = next
		return nil
	}

	st := sp.lookup(requestID)
	if st == nil {
		return fmt.Errorf("%s: no exchange for request %q", sp.name, requestID)
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	auto, err := spec.Compile(st.tok)
	if err != nil {
		return err
	}
	if r, ok := st.cursor.(strategy.Refresher); ok {
		return r.Refresh(idx, auto)
	}
	if _, ok := sp.Config().Strategy.(strategy.Choices); !ok {
		return fmt.Errorf("%s: strategy does not take responses", sp.name)
	}
	if st.phase > PhaseConstrain || st.answerCount > 0 {
		return fmt.Errorf("%s: answer already in progress for %q", sp.name, requestID)
	}
	st.auto = auto
	st.cursor = auto.Start()
	return nil
}

func replaceChoices(cur strategy.Spec, with strategy.Choices, idx int) (strategy.Spec, error) {
	switch s := cur.(type) {
	case strategy.Choices:
		return with, nil
	case strategy.List:
		if s.Elements == nil {
			s.Element = with
			return s, nil
		}
		if idx < 0 || idx >= len(s.Elements) {
			return nil, fmt.Errorf("list element index %d out of range", idx)
		}
		s.Elements = slices.Clone(s.Elements)
		s.Elements[idx] = with
		return s, nil
	}
	return nil, fmt.Errorf("strategy %T does not take responses", cur)
}
