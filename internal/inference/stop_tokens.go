package inference

import (
	"slices"

	"github.com/samcharles93/steer/internal/tokenizer"
)

// BuildStopTokens returns EOS followed by extra, without duplicates or
// negative ids.
func BuildStopTokens(tok tokenizer.Tokenizer, extra []int) []int {
	stop := make([]int, 0, 1+len(extra))
	if eos := tok.EOS(); eos >= 0 {
		stop = append(stop, eos)
	}
	for _, id := range extra {
		if id >= 0 && !slices.Contains(stop, id) {
			stop = append(stop, id)
		}
	}
	return stop
}
