package logits

import (
	"math"
	"math/rand"
)

// Params are the per-draw sampling knobs. A request may override Temperature
// on a single step (for example a mod asking for argmax), so they are passed
// with every call instead of being fixed on the Sampler.
type Params struct {
	Temperature float32
	TopK        int
	TopP        float32
	MinP        float32
}

// Sampler draws token ids from logits vectors. It is not safe for concurrent
// use; backends keep one per request.
type Sampler struct {
	rng    *rand.Rand
	topIdx []int
	topVal []float32
	prob   []float64
}

// NewSampler returns a sampler seeded with seed.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

func (p Params) normalized() (Params, bool) {
	greedy := p.Temperature <= 0
	if p.Temperature <= 0 {
		p.Temperature = 1
	}
	if p.TopK <= 0 {
		p.TopK = 40
	}
	if p.TopP <= 0 || p.TopP > 1 {
		p.TopP = 1
	}
	return p, greedy
}

// Sample draws a single index from logits:
//
//  1. Temperature <= 0, or TopK==1 with TopP>=1, returns the argmax.
//  2. Otherwise logits are scaled by the inverse temperature and the top k
//     are shortlisted.
//  3. A softmax over the shortlist is optionally filtered by MinP and
//     truncated once the cumulative probability reaches TopP.
//  4. A uniform draw selects from what remains.
//
// Masked entries (MaskValue) carry zero probability after the softmax, so a
// constrained vector never yields a masked id while any allowed id survives
// the top-k cut.
func (s *Sampler) Sample(logits []float32, params Params) int {
	p, greedy := params.normalized()
	if greedy || (p.TopK == 1 && p.TopP >= 1) {
		return Argmax(logits)
	}

	k := min(p.TopK, len(logits))
	topIdx, topVal := s.topK(logits, k, 1/p.Temperature)
	if len(topVal) == 0 {
		return 0
	}

	maxv := topVal[0]
	if cap(s.prob) < len(topVal) {
		s.prob = make([]float64, len(topVal))
	}
	prob := s.prob[:len(topVal)]
	var sum float64
	for i := range topVal {
		e := math.Exp(float64(topVal[i] - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return topIdx[0]
	}
	for i := range prob {
		prob[i] /= sum
	}

	if p.MinP > 0 {
		threshold := prob[0] * float64(p.MinP)
		n := 0
		var kept float64
		for i := range prob {
			if prob[i] >= threshold {
				prob[n] = prob[i]
				topIdx[n] = topIdx[i]
				kept += prob[i]
				n++
			}
		}
		prob = prob[:n]
		if kept > 0 {
			for i := range prob {
				prob[i] /= kept
			}
		}
	}

	cut := len(prob)
	if p.TopP < 1 {
		var c float64
		for i := range prob {
			c += prob[i]
			if float32(c) >= p.TopP {
				cut = i + 1
				break
			}
		}
	}

	r := s.rng.Float64()
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r <= c {
			return topIdx[i]
		}
	}
	for i := cut - 1; i > 0; i-- {
		if prob[i] > 0 {
			return topIdx[i]
		}
	}
	return topIdx[0]
}

// Argmax returns the index of the largest value; ties go to the lowest
// index. It panics on an empty slice.
func Argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// topK returns the k largest elements scaled by invTemp, largest first.
// O(V*K), fine for the small k used in sampling.
func (s *Sampler) topK(logits []float32, k int, invTemp float32) ([]int, []float32) {
	if k <= 0 {
		return nil, nil
	}
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float32, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, l := range logits {
		v := l * invTemp
		if l == MaskValue {
			v = MaskValue
		}

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)
		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	s.topIdx = topIdx
	s.topVal = topVal
	return topIdx, topVal
}
