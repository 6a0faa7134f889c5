package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/djeday123/gobpe/tokenizer"
)

// bpetest trains a small vocabulary and checks encode/decode, specials and
// snapshot round trips. Usage: go run ./cmd/bpetest [corpus.txt]
func main() {
	fmt.Println("=== gobpe BPE Tokenizer Test ===")

	path := "data/test_corpus.txt"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// --- Load corpus ---
	corpus, err := loadCorpus(path)
	if err != nil {
		fmt.Printf("Corpus file not found: %v\nUsing fallback...\n", err)
		corpus = fallbackCorpus()
	}
	fmt.Printf("Corpus: %d bytes, %d words\n\n", len(corpus), len(strings.Fields(corpus)))

	// --- Test 1: Train ---
	fmt.Println("--- Test 1: Training ---")
	start := time.Now()
	tok := tokenizer.NewBPE()
	stats := tok.Train([]string{corpus}, 600)
	fmt.Printf("  vocab=%d merges=%d unique words=%d saturated=%v\n", stats.VocabSize, stats.Merges, stats.UniqueWords, stats.Saturated)
	fmt.Printf("  Time: %v\n\n", time.Since(start))

	// --- Test 2: Roundtrip ---
	fmt.Println("--- Test 2: Roundtrip ---")
	tests := []string{
		"Artificial intelligence transforms industries worldwide.",
		"Искусственный интеллект меняет мир",
		"Süni intellekt hər bir sənayeni dəyişdirir",
		"Yapay zeka her sektörü dönüştürüyor",
		"Neural   networks\tlearn",
		"",
	}

	allOK := true
	for _, text := range tests {
		ids := tok.Encode(text)
		ok := tok.Decode(ids) == strings.Join(strings.Fields(text), " ")
		if !ok && !slices.Contains(ids, tokenizer.UnkID) {
			allOK = false
		}
		fmt.Printf("  %s %-45s → %3d tok\n", mark(ok), trunc(text, 42), len(ids))
	}
	fmt.Printf("  Result: %s\n\n", passOrFail(allOK))

	// --- Test 3: Token details ---
	fmt.Println("--- Test 3: Token Details ---")
	for _, s := range []string{"neural network", "интеллект", "intellekt"} {
		ids := tok.Encode(s)
		fmt.Printf("  %q → %d tok: %s\n", s, len(ids), strings.Join(tok.DecodeTokens(ids), " | "))
	}
	fmt.Println()

	// --- Test 4: Special tokens ---
	fmt.Println("--- Test 4: Special Tokens ---")
	withBosEos := tok.EncodeWithSpecials("Salam dünya")
	bosOK := withBosEos[0] == tokenizer.BosID
	eosOK := withBosEos[len(withBosEos)-1] == tokenizer.EosID
	fmt.Printf("  EncodeWithSpecials(%q) = %v\n", "Salam dünya", withBosEos)
	fmt.Printf("  BOS=%d %s  EOS=%d %s\n\n", withBosEos[0], mark(bosOK), withBosEos[len(withBosEos)-1], mark(eosOK))

	// --- Test 5: Save / Load ---
	fmt.Println("--- Test 5: Save / Load ---")
	savePath := filepath.Join(os.TempDir(), "gobpe-test.tok")
	if err := tok.Save(savePath); err != nil {
		fmt.Printf("  ✗ Save error: %v\n", err)
		os.Exit(1)
	}
	tok2, err := tokenizer.LoadBPE(savePath)
	if err != nil {
		fmt.Printf("  ✗ Load error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Loaded: vocab=%d merges=%d\n", tok2.VocabSize(), tok2.NumMerges())

	loadOK := slices.Equal(tok.Merges(), tok2.Merges())
	for _, text := range tests {
		if !slices.Equal(tok.Encode(text), tok2.Encode(text)) {
			loadOK = false
		}
	}
	fmt.Printf("  Loaded matches in-memory: %s\n\n", mark(loadOK))

	// --- Test 6: Determinism ---
	fmt.Println("--- Test 6: Determinism ---")
	tok3 := tokenizer.NewBPE()
	tok3.Train([]string{corpus}, 600)
	fmt.Printf("  Retrained merges identical: %s\n\n", mark(slices.Equal(tok.Merges(), tok3.Merges())))

	// --- Test 7: Compression ---
	fmt.Println("--- Test 7: Compression ---")
	full := tok.Encode(corpus)
	fmt.Printf("  %d runes → %d tokens (%.2fx)\n\n",
		len([]rune(corpus)), len(full), float64(len([]rune(corpus)))/float64(max(len(full), 1)))

	fmt.Println("=== All tests complete ===")
}

// --- Helpers ---

func loadCorpus(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fallbackCorpus() string {
	return `Artificial intelligence transforms industries worldwide.
Искусственный интеллект меняет мир быстрее чем любая технология.
Süni intellekt hər bir sənayeni dəyişdirir və yeni imkanlar yaradır.
Yapay zeka her sektörü dönüştürüyor ve yeni fırsatlar yaratıyor.
Machine learning, нейронные сети, maşın öyrənmə, makine öğrenimi.
Neural networks learn by gradient descent through backpropagation.
Градиентный спуск основной метод оптимизации нейронных сетей.
Qradiyent enişi neyron şəbəkələrinin əsas optimallaşdırma metodudur.
Gradyan iniş sinir ağlarının temel optimizasyon yöntemidir.`
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func passOrFail(ok bool) string {
	if ok {
		return "ALL PASSED ✓"
	}
	return "SOME FAILED ✗"
}

func trunc(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
