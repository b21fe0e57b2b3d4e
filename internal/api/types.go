package api

import (
	"github.com/samcharles93/steer/internal/inference"
	"github.com/samcharles93/steer/internal/trace"
)

// GenerateRequest is the body of POST /v1/generate. Exactly one of Prompt
// and InputIDs is used; InputIDs wins when both are set.
type GenerateRequest struct {
	RequestID     string   `json:"request_id,omitempty"`
	Prompt        string   `json:"prompt,omitempty"`
	InputIDs      []int    `json:"input_ids,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	MinP          *float64 `json:"min_p,omitempty"`
	StopTokens    []int    `json:"stop_tokens,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
	// Store controls whether the generation can be fetched later. Defaults
	// to true.
	Store *bool `json:"store,omitempty"`
}

type Generation struct {
	ID        string             `json:"id"`
	Object    string             `json:"object"`
	CreatedAt int64              `json:"created_at"`
	Text      string             `json:"text"`
	OutputIDs []int              `json:"output_ids"`
	Metadata  inference.Metadata `json:"metadata"`
	Error     *ResponseError     `json:"error,omitempty"`
}

type TraceResponse struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Entries []trace.Entry `json:"entries"`
}

type DeleteResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ModsResponse struct {
	Object string   `json:"object"`
	Data   []string `json:"data"`
}

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
