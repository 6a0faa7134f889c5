package tokenizer

import (
	"context"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// Token ID layout:
//
//   0:   <PAD>   padding
//   1:   <UNK>   unknown symbol / id
//   2:   <BOS>   begin of sequence
//   3:   <EOS>   end of sequence
//   4+:  merged symbols, in the order they were learned
//
// Single characters and the end-of-word marker are not vocabulary entries on
// their own. A symbol that survives encoding without being merged into a
// learned token maps to <UNK>.
// ============================================================================

// DefaultCacheSize is the number of encoded words kept in the word cache.
const DefaultCacheSize = 4096

// BPE is a character-level byte-pair-encoding tokenizer with explicit
// end-of-word markers.
//
// Training: split the corpus on whitespace, seed each word with one symbol per
// character plus </w>, then repeatedly merge the most frequent adjacent pair
// until the vocabulary reaches the target size.
//
// Encoding replays every learned merge in training order over each word.
// A BPE value must not be trained or loaded concurrently with other calls;
// once trained, Encode, Decode and EncodeBatch are safe for concurrent use.
type BPE struct {
	vocab  *Vocabulary
	merges []MergeRule

	cacheSize int
	cache     *lru.Cache[string, []int]

	log *slog.Logger
}

// Option configures a BPE.
type Option func(*BPE)

// WithCacheSize sets the word cache capacity. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(t *BPE) { t.cacheSize = n }
}

// WithLogger sets the logger used for training and persistence.
func WithLogger(l *slog.Logger) Option {
	return func(t *BPE) { t.log = l }
}

// NewBPE returns an untrained tokenizer holding only the reserved tokens.
func NewBPE(opts ...Option) *BPE {
	t := &BPE{
		vocab:     NewVocabulary(),
		cacheSize: DefaultCacheSize,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.resetCache()
	return t
}

// Train learns merges from texts until the vocabulary holds vocabSize tokens
// or no adjacent pairs remain. Any previous vocabulary and merges are
// discarded. A vocabSize at or below NumReserved learns nothing.
func (t *BPE) Train(texts []string, vocabSize int) TrainStats {
	words := newWordTable()
	words.add(texts...)

	tr := &trainer{
		vocab: NewVocabulary(),
		words: words,
		log:   t.log,
	}
	stats := tr.run(vocabSize)

	t.vocab = tr.vocab
	t.merges = tr.merges
	t.resetCache()
	return stats
}

// ============================================================================
// Encode / Decode
// ============================================================================

// Encode converts text to token ids. Words are split on whitespace and
// encoded independently; no <BOS>/<EOS> markers are added.
func (t *BPE) Encode(text string) []int {
	var ids []int
	for _, w := range strings.Fields(text) {
		ids = append(ids, t.encodeWord(w)...)
	}
	return ids
}

// EncodeWithSpecials wraps the encoding of text in <BOS> ... <EOS>.
func (t *BPE) EncodeWithSpecials(text string) []int {
	tokens := t.Encode(text)
	ids := make([]int, 0, len(tokens)+2)
	ids = append(ids, BosID)
	ids = append(ids, tokens...)
	return append(ids, EosID)
}

// EncodeBatch encodes texts with up to workers goroutines. The result keeps
// the order of texts.
func (t *BPE) EncodeBatch(ctx context.Context, texts []string, workers int) ([][]int, error) {
	out := make([][]int, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, text := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = t.Encode(text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *BPE) encodeWord(w string) []int {
	if t.cache != nil {
		if ids, ok := t.cache.Get(w); ok {
			return ids
		}
	}

	symbols := splitWord(w)
	for _, rule := range t.merges {
		if len(symbols) < 2 {
			break
		}
		symbols = rule.apply(symbols)
	}

	ids := make([]int, len(symbols))
	for i, s := range symbols {
		id, ok := t.vocab.ID(s)
		if !ok {
			id = UnkID
		}
		ids[i] = id
	}

	if t.cache != nil {
		t.cache.Add(w, ids)
	}
	return ids
}

// Decode converts ids back to text. A token ending in </w> closes a word,
// reserved tokens and unknown ids stand as words of their own, and words are
// joined by single spaces. Original whitespace runs are not preserved.
//
// Pieces are not separated by a space each: a token without </w> is glued to
// the next one, so Decode([lo, low</w>]) is "lolow", not "lo low". Use
// DecodeTokens for one string per id.
func (t *BPE) Decode(ids []int) string {
	var words []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}

	for _, id := range ids {
		tok, ok := t.vocab.Token(id)
		switch {
		case !ok:
			flush()
			words = append(words, UnkToken)
		case IsReserved(id):
			flush()
			words = append(words, tok)
		case strings.HasSuffix(tok, EndOfWord):
			cur.WriteString(strings.TrimSuffix(tok, EndOfWord))
			flush()
		default:
			cur.WriteString(tok)
		}
	}
	flush()

	return strings.Join(words, " ")
}

// DecodeTokens returns the surface form of each id: the token with its
// end-of-word marker stripped, or <UNK> for ids outside the vocabulary.
func (t *BPE) DecodeTokens(ids []int) []string {
	pieces := make([]string, len(ids))
	for i, id := range ids {
		tok, ok := t.vocab.Token(id)
		if !ok {
			tok = UnkToken
		}
		pieces[i] = strings.TrimSuffix(tok, EndOfWord)
	}
	return pieces
}

// ============================================================================
// Accessors
// ============================================================================

// VocabSize returns the number of tokens, reserved ones included.
func (t *BPE) VocabSize() int { return t.vocab.Len() }

// NumMerges returns the number of learned merge rules.
func (t *BPE) NumMerges() int { return len(t.merges) }

// Merges returns a copy of the merge sequence in training order.
func (t *BPE) Merges() []MergeRule {
	return append([]MergeRule(nil), t.merges...)
}

// TokenID returns the id of tok.
func (t *BPE) TokenID(tok string) (int, bool) { return t.vocab.ID(tok) }

// Token returns the token for id.
func (t *BPE) Token(id int) (string, bool) { return t.vocab.Token(id) }

// NextID returns the id counter of the vocabulary.
func (t *BPE) NextID() int { return t.vocab.NextID() }

func (t *BPE) resetCache() {
	t.cache = nil
	if t.cacheSize <= 0 {
		return
	}
	cache, err := lru.New[string, []int](t.cacheSize)
	if err != nil {
		t.log.Warn("bpe: word cache disabled", "size", t.cacheSize, "error", err)
		return
	}
	t.cache = cache
}
