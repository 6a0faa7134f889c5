// Package dataset cuts encoded text into fixed-length training sequences and
// stores them on disk.
package dataset

// Sequences is a set of equal-length id windows.
type Sequences struct {
	ContextSize int
	Data        [][]int
}

// Len returns the number of sequences.
func (s *Sequences) Len() int { return len(s.Data) }

// Build concatenates the encoded documents and cuts the stream into
// non-overlapping windows of contextSize ids. A trailing remainder shorter
// than contextSize is dropped.
func Build(encoded [][]int, contextSize int) *Sequences {
	s := &Sequences{ContextSize: contextSize}
	if contextSize < 1 {
		return s
	}

	var total int
	for _, ids := range encoded {
		total += len(ids)
	}
	stream := make([]int, 0, total)
	for _, ids := range encoded {
		stream = append(stream, ids...)
	}

	s.Data = make([][]int, 0, len(stream)/contextSize)
	for i := 0; i+contextSize <= len(stream); i += contextSize {
		s.Data = append(s.Data, stream[i:i+contextSize:i+contextSize])
	}
	return s
}

// Split returns the leading sequences as the training set and the trailing
// evalFraction of them as the evaluation set.
func (s *Sequences) Split(evalFraction float64) (train, eval *Sequences) {
	n := len(s.Data)
	splitIdx := n - int(float64(n)*evalFraction)
	splitIdx = min(max(splitIdx, 0), n)

	train = &Sequences{ContextSize: s.ContextSize, Data: s.Data[:splitIdx]}
	eval = &Sequences{ContextSize: s.ContextSize, Data: s.Data[splitIdx:]}
	return train, eval
}
