package tokenizer

// MergeRule rewrites adjacent Left, Right symbols into the single symbol Left+Right.
// The position of a rule in the merge sequence is its priority: rules are
// replayed in the order they were learned.
type MergeRule struct {
	Left, Right string
}

// Merged returns the symbol produced by the rule.
func (r MergeRule) Merged() string { return r.Left + r.Right }

// apply rewrites symbols in place with a single greedy left-to-right pass.
// Occurrences never overlap and a freshly merged symbol is not reconsidered
// within the same pass.
func (r MergeRule) apply(symbols []string) []string {
	if !r.matches(symbols) {
		return symbols
	}

	merged := r.Merged()
	out := symbols[:0]
	for i := 0; i < len(symbols); i++ {
		if i+1 < len(symbols) && symbols[i] == r.Left && symbols[i+1] == r.Right {
			out = append(out, merged)
			i++
			continue
		}
		out = append(out, symbols[i])
	}
	return out
}

// matches reports whether the rule's pair occurs anywhere in symbols.
func (r MergeRule) matches(symbols []string) bool {
	for i := 0; i+1 < len(symbols); i++ {
		if symbols[i] == r.Left && symbols[i+1] == r.Right {
			return true
		}
	}
	return false
}

// countPairs recounts adjacent symbol pairs across all words, weighting each
// occurrence by the word's frequency.
func countPairs(words []*word) map[MergeRule]int {
	counts := make(map[MergeRule]int)
	for _, w := range words {
		for i := 0; i+1 < len(w.symbols); i++ {
			counts[MergeRule{w.symbols[i], w.symbols[i+1]}] += w.freq
		}
	}
	return counts
}
