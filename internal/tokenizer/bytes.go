package tokenizer

import "fmt"

// ByteEOS is the end-of-sequence id used by ByteLevel.
const ByteEOS = 256

// ByteLevel maps every byte of the input to its own token id (0-255) and
// reserves 256 for end-of-sequence. It has no merges, which makes token
// accounting in tests and the toy backend easy to reason about.
type ByteLevel struct{}

// NewByteLevel returns the byte-level tokenizer.
func NewByteLevel() ByteLevel { return ByteLevel{} }

func (ByteLevel) Encode(text string) ([]int, error) {
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i])
	}
	return ids, nil
}

func (ByteLevel) Decode(ids []int) (string, error) {
	buf := make([]byte, 0, len(ids))
	for _, id := range ids {
		switch {
		case id == ByteEOS:
			continue
		case id < 0 || id > 255:
			return "", fmt.Errorf("decode: token id %d out of range", id)
		}
		buf = append(buf, byte(id))
	}
	return string(buf), nil
}

func (ByteLevel) EOS() int       { return ByteEOS }
func (ByteLevel) VocabSize() int { return ByteEOS + 1 }
