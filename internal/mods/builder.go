package mods

// Builder constructs actions for one event and fails at the call site when
// the action is not allowed there.
//
//	b := mods.For(ev)
//	return b.ForceTokens(ids)
type Builder struct {
	ev EventKind
}

// For binds a Builder to ev.
func For(ev Event) Builder { return Builder{ev: ev.Kind()} }

func (b Builder) check(a Action) (Action, error) {
	if !Allowed(b.ev, a.Kind()) {
		return nil, &InvalidActionError{Event: b.ev, Action: a.Kind()}
	}
	return a, nil
}

func (b Builder) Noop() (Action, error) { return Noop{}, nil }

func (b Builder) AdjustPrefill(tokens []int, maxSteps int) (Action, error) {
	return b.check(AdjustedPrefill{Tokens: tokens, MaxSteps: maxSteps})
}

func (b Builder) ForceTokens(tokens []int) (Action, error) {
	return b.check(ForceTokens{Tokens: tokens})
}

func (b Builder) ForceOutput(tokens []int) (Action, error) {
	return b.check(ForceOutput{Tokens: tokens})
}

func (b Builder) ToolCalls(calls ...ToolCall) (Action, error) {
	return b.check(ToolCalls{Calls: calls})
}

func (b Builder) Backtrack(n int, reinject []int) (Action, error) {
	return b.check(Backtrack{N: n, Tokens: reinject})
}

func (b Builder) AdjustLogits(logits []float32, temperature *float32) (Action, error) {
	return b.check(AdjustedLogits{Logits: logits, Temperature: temperature})
}

func (b Builder) EmitError(msg string) (Action, error) {
	return b.check(EmitError{Message: msg})
}
