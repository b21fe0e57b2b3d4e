package toy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samcharles93/steer/internal/inference"
	"github.com/samcharles93/steer/internal/logits"
	"github.com/samcharles93/steer/internal/tokenizer"
)

var (
	ErrUnknownRequest = errors.New("toy: unknown request")
	ErrClosed         = errors.New("toy: backend shut down")
)

// DefaultBoost is the logit bonus given to the scripted next token.
const DefaultBoost = 30

// Options configure a Backend.
type Options struct {
	Hidden int
	Seed   int64
	// Script, when set, biases generation towards this text followed by EOS,
	// so runs are reproducible regardless of the random weights.
	Script string
	Boost  float32
}

type reqState struct {
	tokens   []int
	prompt   int
	maxSteps int
	sampler  *logits.Sampler
}

// Backend serves requests from an LM over a Tokenizer. Per-request contexts
// are independent, so sessions may run concurrently.
type Backend struct {
	model  *LM
	tok    tokenizer.Tokenizer
	script []int
	boost  float32
	seed   int64

	mu     sync.Mutex
	reqs   map[string]*reqState
	closed bool
}

var _ inference.Backend = (*Backend)(nil)

// NewBackend builds a toy backend sized to tok's vocabulary.
func NewBackend(tok tokenizer.Tokenizer, opts Options) (*Backend, error) {
	if opts.Hidden <= 0 {
		opts.Hidden = 16
	}
	if opts.Boost == 0 {
		opts.Boost = DefaultBoost
	}
	b := &Backend{
		model: NewLM(tok.VocabSize(), opts.Hidden, opts.Seed),
		tok:   tok,
		boost: opts.Boost,
		seed:  opts.Seed,
		reqs:  make(map[string]*reqState),
	}
	if opts.Script != "" {
		ids, err := tok.Encode(opts.Script)
		if err != nil {
			return nil, fmt.Errorf("encode script: %w", err)
		}
		b.script = ids
	}
	return b, nil
}

func (b *Backend) get(requestID string) (*reqState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	st, ok := b.reqs[requestID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownRequest, requestID)
	}
	return st, nil
}

func (b *Backend) checkIDs(ids []int) error {
	for _, id := range ids {
		if id < 0 || id >= b.model.Vocab {
			return fmt.Errorf("token id %d out of range [0,%d)", id, b.model.Vocab)
		}
	}
	return nil
}

// Prefill starts (or restarts) the request's context with inputIDs.
func (b *Backend) Prefill(ctx context.Context, requestID string, inputIDs []int, maxSteps int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.checkIDs(inputIDs); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.reqs[requestID] = &reqState{
		tokens:   append([]int(nil), inputIDs...),
		prompt:   len(inputIDs),
		maxSteps: maxSteps,
		sampler:  logits.NewSampler(b.seed),
	}
	return nil
}

// ForwardPass returns logits for the next position, conditioned on the last
// token in the context.
func (b *Backend) ForwardPass(ctx context.Context, requestID string) (inference.Pass, error) {
	if err := ctx.Err(); err != nil {
		return inference.Pass{}, err
	}
	st, err := b.get(requestID)
	if err != nil {
		return inference.Pass{}, err
	}
	last := b.tok.EOS()
	if n := len(st.tokens); n > 0 {
		last = st.tokens[n-1]
	}
	out := b.model.Forward(last)

	if b.script != nil {
		pos := len(st.tokens) - st.prompt
		next := b.tok.EOS()
		if pos < len(b.script) {
			next = b.script[pos]
		}
		out[next] += b.boost
	}

	return inference.Pass{
		Logits:       out,
		HiddenStates: append([]float32(nil), b.model.Embed(last)...),
	}, nil
}

// Sample draws from dist with the request's own sampler.
func (b *Backend) Sample(ctx context.Context, requestID string, dist []float32, p logits.Params) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	st, err := b.get(requestID)
	if err != nil {
		return 0, err
	}
	if len(dist) != b.model.Vocab {
		return 0, fmt.Errorf("logits length %d, want %d", len(dist), b.model.Vocab)
	}
	return st.sampler.Sample(dist, p), nil
}

// AddTokens appends ids to the context.
func (b *Backend) AddTokens(ctx context.Context, requestID string, ids []int, forced bool) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := b.get(requestID)
	if err != nil {
		return nil, err
	}
	if err := b.checkIDs(ids); err != nil {
		return nil, err
	}
	st.tokens = append(st.tokens, ids...)
	return append([]int(nil), ids...), nil
}

// Rewind drops the last n generated tokens. The prompt cannot be rewound.
func (b *Backend) Rewind(ctx context.Context, requestID string, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st, err := b.get(requestID)
	if err != nil {
		return err
	}
	if gen := len(st.tokens) - st.prompt; n < 0 || n > gen {
		return fmt.Errorf("rewind %d exceeds %d generated tokens", n, gen)
	}
	st.tokens = st.tokens[:len(st.tokens)-n]
	return nil
}

// Context returns a copy of the request's committed tokens, prompt included.
func (b *Backend) Context(requestID string) ([]int, error) {
	st, err := b.get(requestID)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), st.tokens...), nil
}

func (b *Backend) Release(requestID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.reqs, requestID)
}

// Active reports how many request contexts are live.
func (b *Backend) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reqs)
}

func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.reqs)
	return nil
}
