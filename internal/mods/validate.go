package mods

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAction = errors.New("invalid action for event")
	ErrModTimeout    = errors.New("mod exceeded time budget")
	ErrModPanic      = errors.New("mod panicked")
)

// InvalidActionError names the action variant a mod returned and the event
// it is not allowed for.
type InvalidActionError struct {
	Event  EventKind
	Action ActionKind
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("action %s is not allowed for event %s", e.Action, e.Event)
}

func (e *InvalidActionError) Unwrap() error { return ErrInvalidAction }

var allowed = map[EventKind][]ActionKind{
	KindPrefilled: {
		ActionNoop, ActionForceOutput, ActionToolCalls, ActionAdjustedPrefill, ActionEmitError,
	},
	KindForwardPass: {
		ActionNoop, ActionForceTokens, ActionBacktrack, ActionForceOutput, ActionToolCalls,
		ActionAdjustedLogits, ActionEmitError,
	},
	KindSampled: {
		ActionNoop, ActionForceTokens, ActionBacktrack, ActionForceOutput, ActionToolCalls, ActionEmitError,
	},
	KindAdded: {
		ActionNoop, ActionForceTokens, ActionBacktrack, ActionForceOutput, ActionToolCalls, ActionEmitError,
	},
}

// Allowed reports whether action kind a may be returned for event kind ev.
func Allowed(ev EventKind, a ActionKind) bool {
	for _, k := range allowed[ev] {
		if k == a {
			return true
		}
	}
	return false
}

// Validate checks a against the per-event matrix. A nil action becomes Noop.
// The action is returned unchanged when allowed.
func Validate(ev Event, a Action) (Action, error) {
	if a == nil {
		return Noop{}, nil
	}
	if !Allowed(ev.Kind(), a.Kind()) {
		return nil, &InvalidActionError{Event: ev.Kind(), Action: a.Kind()}
	}
	return a, nil
}
