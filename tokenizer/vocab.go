package tokenizer

// Reserved tokens. They are seeded in this order by NewVocabulary and always
// occupy ids 0-3.
const (
	PadToken = "<PAD>"
	UnkToken = "<UNK>"
	BosToken = "<BOS>"
	EosToken = "<EOS>"

	PadID = 0
	UnkID = 1
	BosID = 2
	EosID = 3

	// NumReserved is the smallest meaningful target vocabulary size.
	NumReserved = 4
)

// reservedTokens is indexed by id.
var reservedTokens = [NumReserved]string{PadToken, UnkToken, BosToken, EosToken}

// Vocabulary is a bidirectional token <-> id mapping. Ids are allocated
// sequentially and never reused, so nextID always equals the number of
// distinct tokens ever added.
type Vocabulary struct {
	tokenToID map[string]int
	idToToken map[int]string
	nextID    int
}

// NewVocabulary returns a vocabulary holding only the reserved tokens.
func NewVocabulary() *Vocabulary {
	v := &Vocabulary{
		tokenToID: make(map[string]int, 256),
		idToToken: make(map[int]string, 256),
	}
	for _, tok := range reservedTokens {
		v.AddToken(tok)
	}
	return v
}

// AddToken returns the id of token, allocating the next id if the token is new.
func (v *Vocabulary) AddToken(token string) int {
	if id, ok := v.tokenToID[token]; ok {
		return id
	}
	id := v.nextID
	v.nextID++
	v.tokenToID[token] = id
	v.idToToken[id] = token
	return id
}

// ID looks up the id of token.
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.tokenToID[token]
	return id, ok
}

// Token looks up the token stored under id.
func (v *Vocabulary) Token(id int) (string, bool) {
	tok, ok := v.idToToken[id]
	return tok, ok
}

// Len returns the number of tokens.
func (v *Vocabulary) Len() int { return len(v.tokenToID) }

// NextID returns the id the next new token would receive.
func (v *Vocabulary) NextID() int { return v.nextID }

// IsReserved reports whether id belongs to one of the reserved tokens.
func IsReserved(id int) bool { return id >= 0 && id < NumReserved }
