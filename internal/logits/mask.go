package logits

import "math"

// MaskValue is written into disallowed positions. It is the lowest finite
// float32 so sampling arithmetic stays free of NaN and Inf.
const MaskValue = -math.MaxFloat32

// Mask returns a copy of in where every id outside allowed, and every id in
// denied, is set to MaskValue. A nil allowed slice means all ids are allowed.
// Denied wins over allowed. Ids outside the vector are ignored. The input is
// never modified.
func Mask(in []float32, allowed, denied []int) []float32 {
	out := make([]float32, len(in))
	if allowed == nil {
		copy(out, in)
	} else {
		for i := range out {
			out[i] = MaskValue
		}
		for _, id := range allowed {
			if id >= 0 && id < len(in) {
				out[id] = in[id]
			}
		}
	}
	for _, id := range denied {
		if id >= 0 && id < len(out) {
			out[id] = MaskValue
		}
	}
	return out
}

// Masked reports whether v is the mask sentinel.
func Masked(v float32) bool { return v == MaskValue }

// Live returns the ids that are not masked, in ascending order.
func Live(in []float32) []int {
	ids := make([]int, 0, len(in))
	for i, v := range in {
		if v != MaskValue {
			ids = append(ids, i)
		}
	}
	return ids
}
