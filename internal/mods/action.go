package mods

// ActionKind identifies an action variant.
type ActionKind int

const (
	ActionNoop ActionKind = iota
	ActionAdjustedPrefill
	ActionForceTokens
	ActionForceOutput
	ActionToolCalls
	ActionBacktrack
	ActionAdjustedLogits
	ActionEmitError
)

var actionNames = [...]string{
	ActionNoop:            "Noop",
	ActionAdjustedPrefill: "AdjustedPrefill",
	ActionForceTokens:     "ForceTokens",
	ActionForceOutput:     "ForceOutput",
	ActionToolCalls:       "ToolCalls",
	ActionBacktrack:       "Backtrack",
	ActionAdjustedLogits:  "AdjustedLogits",
	ActionEmitError:       "EmitError",
}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return "ActionKind(?)"
}

// Action is a mod's directive to the session.
type Action interface {
	Kind() ActionKind
}

// Noop leaves generation untouched.
type Noop struct{}

// AdjustedPrefill replaces the prompt and/or the step budget. Empty Tokens
// keeps the original prompt; MaxSteps <= 0 keeps the budget.
type AdjustedPrefill struct {
	Tokens   []int
	MaxSteps int
}

// ForceTokens commits Tokens as forced output instead of sampling.
type ForceTokens struct {
	Tokens []int
}

// ForceOutput commits Tokens and ends the request.
type ForceOutput struct {
	Tokens []int
}

// ToolCall is one structured call surfaced to the caller.
type ToolCall struct {
	ID        string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string         `json:"name" yaml:"name"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// ToolCalls ends the request and hands Calls to the caller.
type ToolCalls struct {
	Calls []ToolCall
}

// Backtrack removes the last N committed tokens, then commits Tokens as
// forced when non-empty.
type Backtrack struct {
	N      int
	Tokens []int
}

// AdjustedLogits replaces the distribution used for this step. A non-nil
// Temperature overrides the request temperature for this draw only.
type AdjustedLogits struct {
	Logits      []float32
	Temperature *float32
}

// EmitError ends the request with Message as the failure reason.
type EmitError struct {
	Message string
}

func (Noop) Kind() ActionKind            { return ActionNoop }
func (AdjustedPrefill) Kind() ActionKind { return ActionAdjustedPrefill }
func (ForceTokens) Kind() ActionKind     { return ActionForceTokens }
func (ForceOutput) Kind() ActionKind     { return ActionForceOutput }
func (ToolCalls) Kind() ActionKind       { return ActionToolCalls }
func (Backtrack) Kind() ActionKind       { return ActionBacktrack }
func (AdjustedLogits) Kind() ActionKind  { return ActionAdjustedLogits }
func (EmitError) Kind() ActionKind       { return ActionEmitError }

// Terminal reports whether a ends the request.
func Terminal(a Action) bool {
	if a == nil {
		return false
	}
	switch a.Kind() {
	case ActionForceOutput, ActionToolCalls, ActionEmitError:
		return true
	}
	return false
}

// IsNoop reports whether a is nil or Noop.
func IsNoop(a Action) bool {
	return a == nil || a.Kind() == ActionNoop
}

// Temperature returns a pointer to t, for AdjustedLogits.
func Temperature(t float32) *float32 { return &t }
