package toy

import "math/rand"

// LM is a minimal bigram language model: each token's embedding is projected
// back to vocab logits. It gives the steering pipeline something real to run
// against without loading weights.
type LM struct {
	Vocab  int
	Hidden int

	Emb  []float32 // [Vocab x Hidden]
	W    []float32 // [Hidden x Vocab]
	Bias []float32 // [Vocab]
}

// NewLM builds a model whose weights are derived deterministically from seed.
func NewLM(vocab, hidden int, seed int64) *LM {
	m := &LM{
		Vocab:  vocab,
		Hidden: hidden,
		Emb:    make([]float32, vocab*hidden),
		W:      make([]float32, hidden*vocab),
		Bias:   make([]float32, vocab),
	}
	fillRand(m.Emb, seed+11)
	fillRand(m.W, seed+23)
	return m
}

func fillRand(dst []float32, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range dst {
		dst[i] = (rng.Float32() - 0.5) * 0.02
	}
}

// Embed returns the hidden state for tok. Out-of-range ids are reduced modulo
// Vocab.
func (m *LM) Embed(tok int) []float32 {
	tok %= m.Vocab
	if tok < 0 {
		tok += m.Vocab
	}
	return m.Emb[tok*m.Hidden : (tok+1)*m.Hidden]
}

// Forward computes logits for the token following tok. The returned slice is
// freshly allocated.
func (m *LM) Forward(tok int) []float32 {
	h := m.Embed(tok)
	out := make([]float32, m.Vocab)
	for j := range m.Vocab {
		var sum float32
		for i := range m.Hidden {
			sum += h[i] * m.W[i*m.Vocab+j]
		}
		out[j] = sum + m.Bias[j]
	}
	return out
}
