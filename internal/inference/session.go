package inference

import (
	"context"
	"fmt"
	"slices"

	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/logits"
	"github.com/samcharles93/steer/internal/mods"
	"github.com/samcharles93/steer/internal/tokenizer"
)

// session is the per-request state machine:
//
//	PREFILL -> FORWARD -> SAMPLE -> COMMIT -> FORWARD ... -> DONE
//
// Each phase dispatches its event and acts on the effective action.
type session struct {
	backend Backend
	tok     tokenizer.Tokenizer
	scope   *mods.Scope
	log     logger.Logger
	cfg     Config
	rid     string
	stop    []int

	budget     int
	output     []int
	step       int
	iterations int
	meta       Metadata
	inputIDs   []int
}

func (s *session) meta0() mods.Meta {
	return mods.Meta{RequestID: s.rid, Step: s.step}
}

func (s *session) dispatch(ctx context.Context, ev mods.Event) mods.Action {
	eff, ok := mods.Effective(s.scope.Dispatch(ctx, ev))
	if !ok {
		return mods.Noop{}
	}
	s.log.Debug("action", "event", ev.Kind().String(), "mod", eff.Mod, "action", eff.Action.Kind().String(), "step", s.step)
	return eff.Action
}

func (s *session) backendErr(phase string, err error) error {
	return &BackendError{Phase: phase, Err: err}
}

func (s *session) tick() error {
	s.iterations++
	if s.iterations > iterationLimit(s.cfg, s.budget) {
		return fmt.Errorf("%w after %d iterations", ErrIterationLimit, s.iterations-1)
	}
	return nil
}

func (s *session) run(ctx context.Context, inputIDs []int) error {
	s.inputIDs = inputIDs
	if err := guard("Prefill", func() error {
		return s.backend.Prefill(ctx, s.rid, inputIDs, s.budget)
	}); err != nil {
		return s.backendErr("prefill", err)
	}

	act := s.dispatch(ctx, mods.Prefilled{
		Meta:     s.meta0(),
		MaxSteps: s.budget,
		ContextInfo: map[string]any{
			"input_len":   len(inputIDs),
			"temperature": s.cfg.Temperature,
			"top_p":       s.cfg.TopP,
			"top_k":       s.cfg.TopK,
		},
		InputIDs: inputIDs,
	})
	switch a := act.(type) {
	case mods.AdjustedPrefill:
		if a.MaxSteps > 0 {
			s.budget = a.MaxSteps
		}
		if len(a.Tokens) > 0 {
			s.inputIDs = a.Tokens
			if err := guard("Prefill", func() error {
				return s.backend.Prefill(ctx, s.rid, a.Tokens, s.budget)
			}); err != nil {
				return s.backendErr("prefill", err)
			}
		}
	default:
		if mods.Terminal(a) {
			s.terminate(a)
			return nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(s.output) >= s.budget {
			s.meta.FinishReason = FinishLength
			return nil
		}
		fin, err := s.forward(ctx)
		if err != nil || fin {
			return err
		}
	}
}

// forward runs one FORWARD phase and whatever follows from its action.
func (s *session) forward(ctx context.Context) (bool, error) {
	if err := s.tick(); err != nil {
		return true, err
	}
	s.step++

	var pass Pass
	if err := guard("ForwardPass", func() (err error) {
		pass, err = s.backend.ForwardPass(ctx, s.rid)
		return err
	}); err != nil {
		return true, s.backendErr("forward", err)
	}

	dist := pass.Logits
	var temperature *float32

	act := s.dispatch(ctx, mods.ForwardPass{
		Meta:         s.meta0(),
		Logits:       pass.Logits,
		HiddenStates: pass.HiddenStates,
		Attention:    pass.Attention,
		Layer:        pass.Layer,
		InputIDs:     s.inputIDs,
	})
	switch a := act.(type) {
	case mods.AdjustedLogits:
		dist = a.Logits
		temperature = a.Temperature
	case mods.ForceTokens:
		if len(a.Tokens) > 0 {
			return s.commit(ctx, a.Tokens, true)
		}
	case mods.Backtrack:
		return s.backtrack(ctx, a)
	default:
		if mods.Terminal(a) {
			s.terminate(a)
			return true, nil
		}
	}

	return s.sample(ctx, dist, temperature)
}

func (s *session) sample(ctx context.Context, dist []float32, temperature *float32) (bool, error) {
	params := logits.Params{
		Temperature: s.cfg.Temperature,
		TopK:        s.cfg.TopK,
		TopP:        s.cfg.TopP,
		MinP:        s.cfg.MinP,
	}
	if temperature != nil {
		params.Temperature = *temperature
	}

	var tok int
	if err := guard("Sample", func() (err error) {
		tok, err = s.backend.Sample(ctx, s.rid, dist, params)
		return err
	}); err != nil {
		return true, s.backendErr("sample", err)
	}

	act := s.dispatch(ctx, mods.Sampled{Meta: s.meta0(), SampledToken: tok})
	switch a := act.(type) {
	case mods.ForceTokens:
		if len(a.Tokens) > 0 {
			return s.commit(ctx, a.Tokens, true)
		}
	case mods.Backtrack:
		return s.backtrack(ctx, a)
	default:
		if mods.Terminal(a) {
			s.terminate(a)
			return true, nil
		}
	}
	return s.commit(ctx, []int{tok}, false)
}

// commit adds tokens and dispatches Added, following chained ForceTokens
// until a mod stops forcing.
func (s *session) commit(ctx context.Context, tokens []int, forced bool) (bool, error) {
	for len(tokens) > 0 {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		if err := s.tick(); err != nil {
			return true, err
		}

		var committed []int
		if err := guard("AddTokens", func() (err error) {
			committed, err = s.backend.AddTokens(ctx, s.rid, tokens, forced)
			return err
		}); err != nil {
			return true, s.backendErr("add_tokens", err)
		}
		if committed == nil {
			committed = tokens
		}
		s.output = append(s.output, committed...)
		if forced {
			s.meta.ForcedTokens += len(committed)
		}

		act := s.dispatch(ctx, mods.Added{Meta: s.meta0(), AddedTokens: committed, Forced: forced})
		switch a := act.(type) {
		case mods.ForceTokens:
			tokens, forced = a.Tokens, true
			continue
		case mods.Backtrack:
			return s.backtrack(ctx, a)
		default:
			if mods.Terminal(a) {
				s.terminate(a)
				return true, nil
			}
		}

		if !forced && len(committed) > 0 && slices.Contains(s.stop, committed[len(committed)-1]) {
			s.meta.FinishReason = FinishStop
			return true, nil
		}
		return false, nil
	}
	return false, nil
}

// backtrack rewinds the backend and the output buffer, then commits any
// replacement tokens as forced.
func (s *session) backtrack(ctx context.Context, a mods.Backtrack) (bool, error) {
	n := max(a.N, 0)
	if n > len(s.output) {
		s.log.Warn("backtrack past start of output; clamping", "n", a.N, "output_len", len(s.output))
		n = len(s.output)
	}
	if n > 0 {
		if err := guard("Rewind", func() error {
			return s.backend.Rewind(ctx, s.rid, n)
		}); err != nil {
			return true, s.backendErr("rewind", err)
		}
		s.output = s.output[:len(s.output)-n]
		s.meta.Backtracks++
	}
	if len(a.Tokens) > 0 {
		return s.commit(ctx, a.Tokens, true)
	}
	return false, nil
}

func (s *session) terminate(a mods.Action) {
	s.meta.TerminalAction = a.Kind().String()
	switch a := a.(type) {
	case mods.ForceOutput:
		s.output = append(s.output, a.Tokens...)
		s.meta.ForcedTokens += len(a.Tokens)
		s.meta.FinishReason = FinishForceOutput
	case mods.ToolCalls:
		s.meta.ToolCalls = a.Calls
		s.meta.FinishReason = FinishToolCalls
	case mods.EmitError:
		s.meta.Error = a.Message
		s.meta.FinishReason = FinishError
	}
}
