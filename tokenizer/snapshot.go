package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// SnapshotMagic is the first line of every snapshot file.
const SnapshotMagic = "TOK"

// ErrSnapshotMissing is returned by Load when the snapshot file does not
// exist. It is recoverable: the tokenizer is left untouched.
var ErrSnapshotMissing = fmt.Errorf("tokenizer snapshot not found: %w", fs.ErrNotExist)

// FormatError reports a snapshot that could not be parsed.
type FormatError struct {
	Path   string
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("tokenizer snapshot %s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("tokenizer snapshot %s: %s", e.Path, e.Reason)
}

// snapshot is the persisted state of a BPE.
type snapshot struct {
	tokenToID map[string]int
	idToToken map[int]string
	merges    []MergeRule
	nextID    int
}

// ============================================================================
// Save
// ============================================================================

// Save writes the vocabulary, merge sequence and id counter to path. The file
// is written next to path and renamed into place.
//
// Format (line oriented, tokens quoted with strconv.Quote):
//
//	TOK
//	<n>              token -> id entries, ordered by id
//	"lo" 4
//	<n>              id -> token entries, ordered by id
//	4 "lo"
//	<m>              merges, in training order
//	"l" "o"
//	<next id>
func (t *BPE) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return pkgerrors.Wrapf(err, "create snapshot dir %s", dir)
		}
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return pkgerrors.Wrap(err, "create snapshot")
	}
	defer os.Remove(f.Name())

	if _, err := t.WriteTo(f); err != nil {
		f.Close()
		return pkgerrors.Wrapf(err, "write snapshot %s", path)
	}
	if err := f.Close(); err != nil {
		return pkgerrors.Wrapf(err, "close snapshot %s", path)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return pkgerrors.Wrapf(err, "rename snapshot %s", path)
	}

	t.log.Info("bpe: snapshot saved", "path", path, "tokens", t.vocab.Len(), "merges", len(t.merges))
	return nil
}

// WriteTo writes the snapshot to w.
func (t *BPE) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	ids := make([]int, 0, len(t.vocab.idToToken))
	for id := range t.vocab.idToToken {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fmt.Fprintln(bw, SnapshotMagic)

	fmt.Fprintln(bw, len(t.vocab.tokenToID))
	for _, id := range ids {
		fmt.Fprintf(bw, "%s %d\n", strconv.Quote(t.vocab.idToToken[id]), id)
	}

	fmt.Fprintln(bw, len(t.vocab.idToToken))
	for _, id := range ids {
		fmt.Fprintf(bw, "%d %s\n", id, strconv.Quote(t.vocab.idToToken[id]))
	}

	fmt.Fprintln(bw, len(t.merges))
	for _, m := range t.merges {
		fmt.Fprintf(bw, "%s %s\n", strconv.Quote(m.Left), strconv.Quote(m.Right))
	}

	fmt.Fprintln(bw, t.vocab.nextID)

	err := bw.Flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// ============================================================================
// Load
// ============================================================================

// Load replaces the tokenizer state with the snapshot at path. A missing file
// yields ErrSnapshotMissing; a malformed one yields a *FormatError. In both
// cases the current state is left unchanged.
func (t *BPE) Load(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		t.log.Warn("bpe: snapshot not found", "path", path)
		return pkgerrors.Wrap(ErrSnapshotMissing, path)
	} else if err != nil {
		return pkgerrors.Wrapf(err, "open snapshot %s", path)
	}
	defer f.Close()

	if err := t.LoadFrom(f, path); err != nil {
		return err
	}

	t.log.Info("bpe: snapshot loaded", "path", path, "tokens", t.vocab.Len(), "merges", len(t.merges))
	return nil
}

// LoadFrom replaces the tokenizer state with the snapshot read from r. name
// is used in error messages.
func (t *BPE) LoadFrom(r io.Reader, name string) error {
	snap, err := readSnapshot(r, name)
	if err != nil {
		return err
	}

	t.vocab = &Vocabulary{
		tokenToID: snap.tokenToID,
		idToToken: snap.idToToken,
		nextID:    snap.nextID,
	}
	t.merges = snap.merges
	t.resetCache()
	return nil
}

// LoadBPE reads a snapshot into a new tokenizer.
func LoadBPE(path string, opts ...Option) (*BPE, error) {
	t := NewBPE(opts...)
	if err := t.Load(path); err != nil {
		return nil, err
	}
	return t, nil
}

type snapshotReader struct {
	sc   *bufio.Scanner
	name string
	line int
}

func (r *snapshotReader) errorf(format string, args ...any) error {
	return &FormatError{Path: r.name, Line: r.line, Reason: fmt.Sprintf(format, args...)}
}

func (r *snapshotReader) next() (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", pkgerrors.Wrapf(err, "read snapshot %s", r.name)
		}
		r.line++
		return "", r.errorf("unexpected end of file")
	}
	r.line++
	return r.sc.Text(), nil
}

func (r *snapshotReader) count() (int, error) {
	s, err := r.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, r.errorf("invalid count %q", s)
	}
	return n, nil
}

// quoted splits a leading quoted string off s.
func (r *snapshotReader) quoted(s string) (string, string, error) {
	prefix, err := strconv.QuotedPrefix(s)
	if err != nil {
		return "", "", r.errorf("invalid quoted token in %q", s)
	}
	tok, err := strconv.Unquote(prefix)
	if err != nil {
		return "", "", r.errorf("invalid quoted token in %q", s)
	}
	return tok, strings.TrimSpace(s[len(prefix):]), nil
}

func (r *snapshotReader) id(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, r.errorf("invalid id %q", s)
	}
	return id, nil
}

func readSnapshot(rd io.Reader, name string) (*snapshot, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	r := &snapshotReader{sc: sc, name: name}

	magic, err := r.next()
	if err != nil {
		return nil, err
	}
	if magic != SnapshotMagic {
		return nil, r.errorf("bad magic %q, want %q", magic, SnapshotMagic)
	}

	snap := &snapshot{}

	n, err := r.count()
	if err != nil {
		return nil, err
	}
	snap.tokenToID = make(map[string]int, n)
	for range n {
		line, err := r.next()
		if err != nil {
			return nil, err
		}
		tok, rest, err := r.quoted(line)
		if err != nil {
			return nil, err
		}
		id, err := r.id(rest)
		if err != nil {
			return nil, err
		}
		if _, dup := snap.tokenToID[tok]; dup {
			return nil, r.errorf("duplicate token %q", tok)
		}
		snap.tokenToID[tok] = id
	}

	n, err = r.count()
	if err != nil {
		return nil, err
	}
	snap.idToToken = make(map[int]string, n)
	for range n {
		line, err := r.next()
		if err != nil {
			return nil, err
		}
		idField, rest, ok := strings.Cut(line, " ")
		if !ok {
			return nil, r.errorf("invalid id entry %q", line)
		}
		id, err := r.id(idField)
		if err != nil {
			return nil, err
		}
		tok, rest, err := r.quoted(rest)
		if err != nil {
			return nil, err
		}
		if rest != "" {
			return nil, r.errorf("trailing data %q", rest)
		}
		if _, dup := snap.idToToken[id]; dup {
			return nil, r.errorf("duplicate id %d", id)
		}
		snap.idToToken[id] = tok
	}

	n, err = r.count()
	if err != nil {
		return nil, err
	}
	snap.merges = make([]MergeRule, 0, n)
	for range n {
		line, err := r.next()
		if err != nil {
			return nil, err
		}
		left, rest, err := r.quoted(line)
		if err != nil {
			return nil, err
		}
		right, rest, err := r.quoted(rest)
		if err != nil {
			return nil, err
		}
		if rest != "" {
			return nil, r.errorf("trailing data %q", rest)
		}
		snap.merges = append(snap.merges, MergeRule{Left: left, Right: right})
	}

	if snap.nextID, err = r.count(); err != nil {
		return nil, err
	}

	if err := snap.validate(name); err != nil {
		return nil, err
	}
	return snap, nil
}

// validate checks that the two mappings are exact inverses, that the id
// counter is past every allocated id and that the reserved tokens hold ids 0-3.
func (s *snapshot) validate(name string) error {
	if len(s.tokenToID) != len(s.idToToken) {
		return &FormatError{Path: name, Reason: fmt.Sprintf("mapping sizes differ: %d tokens, %d ids", len(s.tokenToID), len(s.idToToken))}
	}
	for tok, id := range s.tokenToID {
		if back, ok := s.idToToken[id]; !ok || back != tok {
			return &FormatError{Path: name, Reason: fmt.Sprintf("token %q and id %d do not map to each other", tok, id)}
		}
		if id >= s.nextID {
			return &FormatError{Path: name, Reason: fmt.Sprintf("id %d is not below next id %d", id, s.nextID)}
		}
	}
	for id, want := range reservedTokens {
		if got, ok := s.idToToken[id]; !ok || got != want {
			return &FormatError{Path: name, Reason: fmt.Sprintf("id %d must be reserved token %q", id, want)}
		}
	}
	return nil
}
