package inference

import (
	"context"
	"time"

	"github.com/samcharles93/steer/internal/logits"
	"github.com/samcharles93/steer/internal/mods"
)

// Pass is the output of one forward pass. Only Logits is required;
// activation fields stay nil unless the backend exposes them.
type Pass struct {
	Logits       []float32
	HiddenStates []float32
	Attention    []float32
	Layer        int
}

// Backend is the model runtime a request is generated against. Every call
// is scoped to a request id; a backend must keep per-request contexts
// independent so sessions can run concurrently.
type Backend interface {
	Prefill(ctx context.Context, requestID string, inputIDs []int, maxSteps int) error
	ForwardPass(ctx context.Context, requestID string) (Pass, error)
	Sample(ctx context.Context, requestID string, dist []float32, p logits.Params) (int, error)
	// AddTokens appends ids to the request's context and returns what was
	// actually committed.
	AddTokens(ctx context.Context, requestID string, ids []int, forced bool) ([]int, error)
	// Rewind drops the last n committed tokens.
	Rewind(ctx context.Context, requestID string, n int) error
	// Release frees the request's context. It must be safe to call for
	// unknown ids.
	Release(requestID string)
	Shutdown() error
}

// FinishReason says why a request ended.
type FinishReason string

const (
	FinishStop        FinishReason = "stop"
	FinishLength      FinishReason = "length"
	FinishForceOutput FinishReason = "force_output"
	FinishToolCalls   FinishReason = "tool_calls"
	FinishError       FinishReason = "error"
)

// Metadata describes how a request ran.
type Metadata struct {
	RequestID      string          `json:"request_id"`
	FinishReason   FinishReason    `json:"finish_reason"`
	TerminalAction string          `json:"terminal_action,omitempty"`
	ToolCalls      []mods.ToolCall `json:"tool_calls,omitempty"`
	Error          string          `json:"error,omitempty"`
	Steps          int             `json:"steps_executed"`
	Backtracks     int             `json:"backtracks"`
	ForcedTokens   int             `json:"forced_tokens"`
	Duration       time.Duration   `json:"duration_ns"`
}

// Result is the outcome of Generate.
type Result struct {
	OutputIDs []int    `json:"output_ids"`
	Text      string   `json:"text"`
	Metadata  Metadata `json:"metadata"`
}
