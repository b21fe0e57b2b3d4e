package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/mods"
	"github.com/samcharles93/steer/internal/tokenizer"
	"github.com/samcharles93/steer/internal/trace"
)

// Engine drives requests through a Backend, dispatching every phase to the
// registered mods. An Engine is safe for concurrent Generate calls as long
// as its Backend is.
type Engine struct {
	Backend   Backend
	Tokenizer tokenizer.Tokenizer
	Mods      *mods.Registry
	Logger    logger.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewRequestID returns a fresh request id.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// Generate runs one request to completion. inputIDs is the tokenized prompt.
//
// A requestID already in flight on this Engine is rejected with
// ErrDuplicateRequest before anything reaches the backend or the mods.
// On backend failure the partial Result is returned together with a
// *BackendError. On cancellation the request's state is discarded and only
// ctx.Err() is returned.
func (e *Engine) Generate(ctx context.Context, requestID string, inputIDs []int, cfg Config) (*Result, error) {
	if requestID == "" {
		requestID = NewRequestID()
	}
	log := e.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}
	registry := e.Mods
	if registry == nil {
		registry = mods.NewRegistry(mods.Options{Logger: log})
	}
	if err := e.reserve(requestID); err != nil {
		return nil, err
	}
	defer e.release(requestID)

	s := &session{
		backend: e.Backend,
		tok:     e.Tokenizer,
		scope:   registry.Begin(requestID, e.Tokenizer),
		log:     log.With("request_id", requestID),
		cfg:     cfg,
		rid:     requestID,
		stop:    BuildStopTokens(e.Tokenizer, cfg.StopTokens),
		budget:  cfg.MaxTokens,
	}
	s.meta.RequestID = requestID
	defer e.Backend.Release(requestID)

	start := time.Now()
	err := s.run(ctx, inputIDs)
	s.meta.Duration = time.Since(start)

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.scope.Abort()
		s.log.Info("request cancelled", "steps", s.step)
		return nil, ctx.Err()
	}

	if err != nil {
		s.meta.FinishReason = FinishError
		s.meta.Error = err.Error()
	}
	s.scope.Record(trace.Entry{
		Kind:    trace.KindFinish,
		Step:    s.step,
		Message: string(s.meta.FinishReason),
		Details: map[string]any{
			"output_len":      len(s.output),
			"terminal_action": s.meta.TerminalAction,
			"backtracks":      s.meta.Backtracks,
			"duration_ms":     s.meta.Duration.Milliseconds(),
		},
	})
	if cerr := s.scope.Close(); cerr != nil {
		s.log.Warn("trace flush failed", "error", cerr)
	}

	s.meta.Steps = s.step
	res := &Result{
		OutputIDs: append([]int{}, s.output...),
		Metadata:  s.meta,
	}
	if text, derr := e.Tokenizer.Decode(res.OutputIDs); derr == nil {
		res.Text = text
	} else {
		s.log.Warn("decode output failed", "error", derr)
	}
	s.log.Debug("request finished",
		"reason", s.meta.FinishReason,
		"tokens", len(res.OutputIDs),
		"steps", s.meta.Steps,
		"duration", s.meta.Duration,
	)
	return res, err
}

func (e *Engine) reserve(requestID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[requestID]; busy {
		return fmt.Errorf("%w: %q", ErrDuplicateRequest, requestID)
	}
	if e.active == nil {
		e.active = make(map[string]struct{})
	}
	e.active[requestID] = struct{}{}
	return nil
}

func (e *Engine) release(requestID string) {
	e.mu.Lock()
	delete(e.active, requestID)
	e.mu.Unlock()
}
