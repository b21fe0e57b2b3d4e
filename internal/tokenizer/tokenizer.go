package tokenizer

// Tokenizer is the capability the steering layer needs from a model's
// vocabulary: text round-tripping plus the end-of-sequence id and vocab size
// so constraints can be expressed over the whole logits vector.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
	EOS() int
	VocabSize() int
}

// TokenText decodes a single id, returning "" when the id has no text form.
func TokenText(tok Tokenizer, id int) string {
	s, err := tok.Decode([]int{id})
	if err != nil {
		return ""
	}
	return s
}

// MustEncode encodes text and panics on failure. Intended for tests and
// constant prompts.
func MustEncode(tok Tokenizer, text string) []int {
	ids, err := tok.Encode(text)
	if err != nil {
		panic(err)
	}
	return ids
}
