package tokenizer

// Tokenizer is the common interface for text <-> id conversion.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
	VocabSize() int
}

var _ Tokenizer = (*BPE)(nil)
