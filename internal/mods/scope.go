package mods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/tokenizer"
	"github.com/samcharles93/steer/internal/trace"
)

// Outcome is one mod's contribution to a dispatch. Err is set when the mod
// failed, timed out, panicked or returned an invalid action; Action is Noop
// in that case.
type Outcome struct {
	Mod    string
	Action Action
	Err    error
}

// Effective returns the first non-Noop outcome in registration order.
func Effective(outcomes []Outcome) (Outcome, bool) {
	for _, o := range outcomes {
		if !IsNoop(o.Action) {
			return o, true
		}
	}
	return Outcome{Action: Noop{}}, false
}

// Scope dispatches events for a single request. It is used by one session
// goroutine and is not safe for concurrent Dispatch calls.
type Scope struct {
	requestID   string
	tok         tokenizer.Tokenizer
	mods        []entry
	timeout     time.Duration
	log         logger.Logger
	traces      *trace.Store
	trace       *trace.Log
	quarantined map[int]bool
	closed      bool
}

func (s *Scope) RequestID() string { return s.requestID }

// Trace returns the request's trace log.
func (s *Scope) Trace() *trace.Log { return s.trace }

// Record appends e to the request's trace.
func (s *Scope) Record(e trace.Entry) { s.trace.Add(e) }

// Dispatch delivers ev to every mod in order and returns their outcomes.
// Failures never propagate: each is recorded and replaced with Noop.
func (s *Scope) Dispatch(ctx context.Context, ev Event) []Outcome {
	step := ev.Base().Step
	s.trace.Add(trace.Entry{
		Kind:    trace.KindEvent,
		Step:    step,
		Event:   ev.Kind().String(),
		Details: eventDetails(ev),
	})

	outcomes := make([]Outcome, 0, len(s.mods))
	for i, m := range s.mods {
		if s.quarantined[i] {
			outcomes = append(outcomes, Outcome{
				Mod:    m.name,
				Action: Noop{},
				Err:    fmt.Errorf("%w: skipped for rest of request", ErrModTimeout),
			})
			continue
		}
		outcomes = append(outcomes, s.invoke(ctx, i, m, ev))
	}
	return outcomes
}

type callResult struct {
	action Action
	err    error
}

func (s *Scope) invoke(ctx context.Context, idx int, m entry, ev Event) Outcome {
	step := ev.Base().Step
	modLog, capture := logger.CaptureLogger(s.log.With("mod", m.name))
	mctx := WithRequestID(logger.WithContext(ctx, modLog), s.requestID)

	call := func(ctx context.Context) (a Action, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%w: %v", ErrModPanic, rec)
			}
		}()
		return m.mod.Handle(ctx, ev, s.tok)
	}

	start := time.Now()
	var res callResult
	if s.timeout < 0 {
		res.action, res.err = call(mctx)
	} else {
		tctx, cancel := context.WithTimeout(mctx, s.timeout)
		done := make(chan callResult, 1)
		go func() {
			a, err := call(tctx)
			done <- callResult{action: a, err: err}
		}()
		select {
		case res = <-done:
		case <-tctx.Done():
			if ctx.Err() != nil {
				res.err = ctx.Err()
			} else {
				res.err = fmt.Errorf("%w (%s)", ErrModTimeout, s.timeout)
				s.quarantined[idx] = true
			}
		}
		cancel()
	}
	elapsed := time.Since(start)

	if text := capture.Text(); text != "" {
		s.trace.Add(trace.Entry{Kind: trace.KindModLog, Step: step, Event: ev.Kind().String(), Mod: m.name, Message: text})
	}

	out := Outcome{Mod: m.name, Action: Noop{}}
	switch {
	case res.err != nil:
		out.Err = res.err
	default:
		a, err := Validate(ev, res.action)
		if err != nil {
			out.Err = err
		} else {
			out.Action = a
		}
	}

	s.trace.Add(trace.Entry{
		Kind:    trace.KindModCall,
		Step:    step,
		Event:   ev.Kind().String(),
		Mod:     m.name,
		Action:  out.Action.Kind().String(),
		Details: map[string]any{"duration_us": elapsed.Microseconds()},
	})

	if out.Err != nil {
		details := map[string]any{}
		var inv *InvalidActionError
		if errors.As(out.Err, &inv) {
			details["rejected_action"] = inv.Action.String()
		}
		s.trace.Add(trace.Entry{
			Kind:    trace.KindError,
			Step:    step,
			Event:   ev.Kind().String(),
			Mod:     m.name,
			Message: truncate(out.Err.Error(), maxErrorText),
			Details: details,
		})
		s.log.Warn("mod failed; substituting noop",
			"mod", m.name,
			"event", ev.Kind().String(),
			"step", step,
			"error", out.Err,
		)
		return out
	}

	if !IsNoop(out.Action) {
		s.trace.Add(trace.Entry{
			Kind:    trace.KindAction,
			Step:    step,
			Event:   ev.Kind().String(),
			Mod:     m.name,
			Action:  out.Action.Kind().String(),
			Details: Describe(out.Action),
		})
	}
	return out
}

// Close tells Finisher mods the request is over and flushes the trace.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.finish()
	return s.traces.Close(s.requestID)
}

// Abort ends the scope without keeping the trace, as on cancellation.
func (s *Scope) Abort() {
	if s.closed {
		return
	}
	s.closed = true
	s.finish()
	s.traces.Discard(s.requestID)
}

func (s *Scope) finish() {
	for _, m := range s.mods {
		f, ok := m.mod.(Finisher)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					s.log.Error("mod finish panicked", "mod", m.name, "panic", rec)
				}
			}()
			f.Finish(s.requestID)
		}()
	}
}

func eventDetails(ev Event) map[string]any {
	switch e := ev.(type) {
	case Prefilled:
		return map[string]any{"max_steps": e.MaxSteps, "input_len": len(e.InputIDs)}
	case ForwardPass:
		d := map[string]any{"logits_shape": []int{len(e.Logits)}}
		if e.HiddenStates != nil {
			d["hidden_states"] = len(e.HiddenStates)
			d["layer"] = e.Layer
		}
		return d
	case Sampled:
		return map[string]any{"token": e.SampledToken}
	case Added:
		d := map[string]any{"forced": e.Forced}
		describeTokens(d, e.AddedTokens)
		return d
	}
	return nil
}
