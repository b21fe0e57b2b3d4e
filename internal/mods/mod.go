package mods

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/tokenizer"
	"github.com/samcharles93/steer/internal/trace"
)

// DefaultModTimeout bounds a single mod invocation.
const DefaultModTimeout = 2 * time.Second

// Mod observes an event and may return an action. Returning (nil, nil) is
// the same as Noop. A Mod is shared by every request; per-request state must
// be keyed by the request id (see RequestID) and released in Finish.
type Mod interface {
	Handle(ctx context.Context, ev Event, tok tokenizer.Tokenizer) (Action, error)
}

// ModFunc adapts a function to Mod.
type ModFunc func(ctx context.Context, ev Event, tok tokenizer.Tokenizer) (Action, error)

func (f ModFunc) Handle(ctx context.Context, ev Event, tok tokenizer.Tokenizer) (Action, error) {
	return f(ctx, ev, tok)
}

// Named mods supply their own identity for traces and outcomes.
type Named interface {
	Name() string
}

// Finisher mods are told when a request ends, however it ends.
type Finisher interface {
	Finish(requestID string)
}

type requestIDKey struct{}

// RequestID returns the id of the request a mod is being invoked for.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithRequestID scopes ctx to requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Options configures a Registry.
type Options struct {
	// ModTimeout bounds each invocation. Zero means DefaultModTimeout; a
	// negative value disables the bound and runs mods inline.
	ModTimeout time.Duration
	Logger     logger.Logger
	Traces     *trace.Store
}

type entry struct {
	name string
	mod  Mod
}

// Registry is the ordered set of mods active for this process. Registration
// order is dispatch order and decides which action takes effect.
type Registry struct {
	mu      sync.RWMutex
	mods    []entry
	timeout time.Duration
	log     logger.Logger
	traces  *trace.Store
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		timeout: opts.ModTimeout,
		log:     opts.Logger,
		traces:  opts.Traces,
	}
	if r.timeout == 0 {
		r.timeout = DefaultModTimeout
	}
	if r.log == nil {
		r.log = logger.Default()
	}
	if r.traces == nil {
		r.traces = trace.NewStore()
	}
	return r
}

// Register appends m, naming it after Named or its type, and returns the
// name used.
func (r *Registry) Register(m Mod) string {
	name := fmt.Sprintf("%T", m)
	if n, ok := m.(Named); ok && n.Name() != "" {
		name = n.Name()
	}
	r.RegisterNamed(name, m)
	return name
}

// RegisterNamed appends m under name.
func (r *Registry) RegisterNamed(name string, m Mod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods = append(r.mods, entry{name: name, mod: m})
}

// Names lists registered mods in dispatch order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.mods))
	for i, e := range r.mods {
		names[i] = e.name
	}
	return names
}

// Len reports the number of registered mods.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mods)
}

// Traces returns the trace store requests record into.
func (r *Registry) Traces() *trace.Store { return r.traces }

// Begin opens the dispatch scope for one request. The set of mods is fixed
// for the lifetime of the scope.
func (r *Registry) Begin(requestID string, tok tokenizer.Tokenizer) *Scope {
	r.mu.RLock()
	snapshot := append([]entry(nil), r.mods...)
	r.mu.RUnlock()

	return &Scope{
		requestID:   requestID,
		tok:         tok,
		mods:        snapshot,
		timeout:     r.timeout,
		log:         r.log.With("request_id", requestID),
		traces:      r.traces,
		trace:       r.traces.Open(requestID),
		quarantined: make(map[int]bool),
	}
}
