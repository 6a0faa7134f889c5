package tokenizer

import "strings"

// EndOfWord terminates every word's symbol sequence. It is appended once when
// the word is split and is never merged away from the end.
const EndOfWord = "</w>"

// word is one unique corpus word, currently segmented into symbols.
type word struct {
	symbols []string
	freq    int
}

// wordTable aggregates a corpus into unique words with occurrence counts.
// Words keep first-seen order so every pass over the table is deterministic.
type wordTable struct {
	words []*word
	index map[string]int
	total int
}

func newWordTable() *wordTable {
	return &wordTable{index: make(map[string]int)}
}

// add splits every text block on whitespace and counts each word.
func (wt *wordTable) add(texts ...string) {
	for _, text := range texts {
		for _, w := range strings.Fields(text) {
			wt.addWord(w)
		}
	}
}

func (wt *wordTable) addWord(w string) {
	wt.total++

	// Keyed by the rune sequence rather than the raw bytes: two spellings that
	// split into identical symbols (e.g. differing invalid UTF-8 bytes) share one entry.
	key := string([]rune(w))
	if i, ok := wt.index[key]; ok {
		wt.words[i].freq++
		return
	}
	wt.index[key] = len(wt.words)
	wt.words = append(wt.words, &word{symbols: splitWord(w), freq: 1})
}

func (wt *wordTable) len() int { return len(wt.words) }

// splitWord returns one symbol per code point followed by EndOfWord.
func splitWord(w string) []string {
	symbols := make([]string, 0, len(w)+1)
	for _, r := range w {
		symbols = append(symbols, string(r))
	}
	return append(symbols, EndOfWord)
}
