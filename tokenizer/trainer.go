package tokenizer

import (
	"cmp"
	"log/slog"

	"github.com/emirpasic/gods/v2/trees/binaryheap"

	"github.com/djeday123/gobpe/pkg/logutil"
)

// TrainStats summarizes a training run.
type TrainStats struct {
	Words       int // whitespace-delimited words in the corpus
	UniqueWords int
	Merges      int
	VocabSize   int

	// Saturated is set when training ran out of adjacent pairs before
	// reaching the target size.
	Saturated bool
}

type pairCount struct {
	pair  MergeRule
	count int
}

// comparePairCounts ranks the highest count first and breaks ties on the
// lexicographically smallest (Left, Right), so training never depends on map
// iteration order.
func comparePairCounts(x, y pairCount) int {
	return cmp.Or(
		cmp.Compare(y.count, x.count),
		cmp.Compare(x.pair.Left, y.pair.Left),
		cmp.Compare(x.pair.Right, y.pair.Right),
	)
}

// pairQueue holds the live pair frequency table plus a heap of count
// snapshots. A snapshot is stale once it no longer matches the live count and
// is discarded when it reaches the top.
type pairQueue struct {
	counts map[MergeRule]int
	heap   *binaryheap.Heap[pairCount]
}

func newPairQueue(counts map[MergeRule]int) *pairQueue {
	q := &pairQueue{
		counts: counts,
		heap:   binaryheap.NewWith(comparePairCounts),
	}
	q.rebuild()
	return q
}

func (q *pairQueue) rebuild() {
	q.heap.Clear()
	for p, c := range q.counts {
		q.heap.Push(pairCount{pair: p, count: c})
	}
}

// pop removes and returns the best live pair.
func (q *pairQueue) pop() (pairCount, bool) {
	for {
		pc, ok := q.heap.Pop()
		if !ok {
			return pairCount{}, false
		}
		if live, ok := q.counts[pc.pair]; ok && live == pc.count {
			return pc, true
		}
	}
}

// update applies count deltas and queues a fresh snapshot for every pair that
// is still present.
func (q *pairQueue) update(deltas map[MergeRule]int) {
	for p, d := range deltas {
		if d == 0 {
			continue
		}
		c := q.counts[p] + d
		if c <= 0 {
			delete(q.counts, p)
			continue
		}
		q.counts[p] = c
		q.heap.Push(pairCount{pair: p, count: c})
	}

	if q.heap.Size() > 4*len(q.counts)+1024 {
		q.rebuild()
	}
}

// trainer runs the merge loop over a word table, growing vocab and merges.
type trainer struct {
	vocab  *Vocabulary
	words  *wordTable
	merges []MergeRule
	log    *slog.Logger

	queue *pairQueue
}

func (tr *trainer) run(target int) TrainStats {
	stats := TrainStats{Words: tr.words.total, UniqueWords: tr.words.len()}
	if tr.words.len() == 0 {
		tr.log.Info("bpe: corpus has no words, nothing to train")
		stats.VocabSize = tr.vocab.Len()
		return stats
	}

	tr.log.Info("bpe: training", "words", stats.Words, "unique", stats.UniqueWords, "target", target)

	tr.queue = newPairQueue(countPairs(tr.words.words))
	for tr.vocab.Len() < target {
		best, ok := tr.queue.pop()
		if !ok {
			stats.Saturated = true
			break
		}

		rule := best.pair
		tr.merges = append(tr.merges, rule)
		id := tr.vocab.AddToken(rule.Merged())
		tr.queue.update(tr.mergeWords(rule))

		logutil.Trace(tr.log, "bpe: merge",
			"n", len(tr.merges), "left", rule.Left, "right", rule.Right, "id", id, "count", best.count)

		if n := tr.vocab.Len(); n%500 == 0 {
			tr.log.Info("bpe: progress", "tokens", n, "merges", len(tr.merges))
		}
	}

	stats.Merges = len(tr.merges)
	stats.VocabSize = tr.vocab.Len()
	tr.log.Info("bpe: training finished", "tokens", stats.VocabSize, "merges", stats.Merges, "saturated", stats.Saturated)
	return stats
}

// mergeWords rewrites every word containing rule's pair and returns the
// resulting change in pair counts.
func (tr *trainer) mergeWords(rule MergeRule) map[MergeRule]int {
	deltas := make(map[MergeRule]int)
	for _, w := range tr.words.words {
		if !rule.matches(w.symbols) {
			continue
		}
		for i := 0; i+1 < len(w.symbols); i++ {
			deltas[MergeRule{w.symbols[i], w.symbols[i+1]}] -= w.freq
		}
		w.symbols = rule.apply(w.symbols)
		for i := 0; i+1 < len(w.symbols); i++ {
			deltas[MergeRule{w.symbols[i], w.symbols[i+1]}] += w.freq
		}
	}
	return deltas
}
