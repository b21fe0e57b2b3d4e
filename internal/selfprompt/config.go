package selfprompt

import (
	"fmt"
	"strings"
)

// EraseMode controls how much of the exchange stays in the transcript once
// the answer resolves.
type EraseMode int

const (
	// EraseNone keeps prompt, answer and suffix.
	EraseNone EraseMode = iota
	// ErasePrompt removes the exchange and reinjects only the answer.
	ErasePrompt
	// EraseAll removes the exchange entirely; the answer lives on only in
	// memory.
	EraseAll
)

var eraseNames = [...]string{EraseNone: "none", ErasePrompt: "prompt", EraseAll: "all"}

func (m EraseMode) String() string {
	if m >= 0 && int(m) < len(eraseNames) {
		return eraseNames[m]
	}
	return fmt.Sprintf("EraseMode(%d)", int(m))
}

func (m EraseMode) valid() bool { return m >= EraseNone && m <= EraseAll }

// ParseEraseMode accepts none, prompt or all. An empty string is none.
func ParseEraseMode(s string) (EraseMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return EraseNone, nil
	case "prompt":
		return ErasePrompt, nil
	case "all":
		return EraseAll, nil
	}
	return 0, malformed("erase", "unknown erase mode %q", s)
}

// Phase is where a request is in the exchange.
type Phase int

const (
	PhaseInjectPrompt Phase = iota
	PhaseAwaitPrompt
	PhaseConstrain
	PhaseInjectSuffix
	PhaseAwaitSuffix
	PhaseErase
	PhaseDone
)

var phaseNames = [...]string{
	PhaseInjectPrompt: "inject_prompt",
	PhaseAwaitPrompt:  "await_prompt_commit",
	PhaseConstrain:    "constrain_answer",
	PhaseInjectSuffix: "inject_suffix",
	PhaseAwaitSuffix:  "await_suffix_commit",
	PhaseErase:        "erase",
	PhaseDone:         "done",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}
