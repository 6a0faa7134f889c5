package tokenizer

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	tok := quietBPE()
	tok.Train([]string{
		"low lower lowest",
		`quoted "words" with\backslashes and tabs`,
		"日本語 テキスト 日本",
	}, 40)

	path := filepath.Join(t.TempDir(), "nested", "tokenizer.tok")
	require.NoError(t, tok.Save(path))

	loaded, err := LoadBPE(path, WithLogger(tok.log))
	require.NoError(t, err)

	assert.Equal(t, tok.Merges(), loaded.Merges())
	assert.Equal(t, tok.vocab.tokenToID, loaded.vocab.tokenToID)
	assert.Equal(t, tok.vocab.idToToken, loaded.vocab.idToToken)
	assert.Equal(t, tok.NextID(), loaded.NextID())

	for _, text := range []string{"lowest low", `"words"`, "日本語", "never seen"} {
		assert.Equal(t, tok.Encode(text), loaded.Encode(text), text)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSnapshotLayout(t *testing.T) {
	tok := trainedLow(t)

	var buf bytes.Buffer
	n, err := tok.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"TOK",
		"8",
		`"<PAD>" 0`, `"<UNK>" 1`, `"<BOS>" 2`, `"<EOS>" 3`,
		`"lo" 4`, `"low" 5`, `"lowe" 6`, `"low</w>" 7`,
		"8",
		`0 "<PAD>"`, `1 "<UNK>"`, `2 "<BOS>"`, `3 "<EOS>"`,
		`4 "lo"`, `5 "low"`, `6 "lowe"`, `7 "low</w>"`,
		"4",
		`"l" "o"`, `"lo" "w"`, `"low" "e"`, `"low" "</w>"`,
		"8",
	}, lines)
}

func TestLoadMissing(t *testing.T) {
	tok := trainedLow(t)
	before := tok.Merges()

	err := tok.Load(filepath.Join(t.TempDir(), "missing.tok"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSnapshotMissing)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.Equal(t, before, tok.Merges(), "state unchanged")
	assert.Equal(t, 8, tok.VocabSize())

	_, err = LoadBPE(filepath.Join(t.TempDir(), "missing.tok"))
	assert.ErrorIs(t, err, ErrSnapshotMissing)
}

func TestLoadMalformed(t *testing.T) {
	type tc struct {
		desc string
		body string
		line int
	}

	tcs := []tc{
		{desc: "empty file", body: "", line: 1},
		{desc: "bad magic", body: "NOPE\n0\n0\n0\n4\n", line: 1},
		{desc: "bad count", body: "TOK\nmany\n", line: 2},
		{desc: "negative count", body: "TOK\n-1\n", line: 2},
		{desc: "truncated entries", body: "TOK\n2\n\"a\" 4\n", line: 4},
		{desc: "unquoted token", body: "TOK\n1\na 4\n", line: 3},
		{desc: "bad id", body: "TOK\n1\n\"a\" x\n", line: 3},
		{desc: "duplicate token", body: "TOK\n2\n\"a\" 4\n\"a\" 5\n", line: 4},
		{desc: "missing next id", body: "TOK\n0\n0\n0\n", line: 5},
		{desc: "mapping size mismatch", body: "TOK\n1\n\"a\" 4\n0\n0\n5\n"},
		{desc: "mappings disagree", body: "TOK\n1\n\"a\" 4\n1\n4 \"b\"\n0\n5\n"},
		{desc: "id past counter", body: "TOK\n1\n\"a\" 4\n1\n4 \"a\"\n0\n4\n"},
		{desc: "missing reserved tokens", body: "TOK\n1\n\"a\" 4\n1\n4 \"a\"\n0\n5\n"},
		{desc: "trailing data after id entry", body: "TOK\n0\n1\n4 \"a\" junk\n", line: 4},
		{desc: "trailing data after merge", body: "TOK\n0\n0\n1\n\"a\" \"b\" junk\n", line: 5},
	}

	for i, tc := range tcs {
		tok := trainedLow(t)
		before := tok.Merges()

		path := filepath.Join(t.TempDir(), "bad.tok")
		require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o644))

		err := tok.Load(path)
		var fe *FormatError
		require.True(t, errors.As(err, &fe), "\ncase %d: %s: %v", i, tc.desc, err)
		assert.Equal(t, path, fe.Path, "\ncase %d: %s", i, tc.desc)
		assert.Equal(t, tc.line, fe.Line, "\ncase %d: %s", i, tc.desc)
		assert.NotErrorIs(t, err, fs.ErrNotExist)

		assert.Equal(t, before, tok.Merges(), "\ncase %d: %s", i, tc.desc)
		assert.Equal(t, 8, tok.VocabSize(), "\ncase %d: %s", i, tc.desc)
	}
}

func TestLoadFromMinimal(t *testing.T) {
	tok := quietBPE()
	body := "TOK\n5\n" +
		"\"<PAD>\" 0\n\"<UNK>\" 1\n\"<BOS>\" 2\n\"<EOS>\" 3\n\"ab</w>\" 4\n" +
		"5\n" +
		"0 \"<PAD>\"\n1 \"<UNK>\"\n2 \"<BOS>\"\n3 \"<EOS>\"\n4 \"ab</w>\"\n" +
		"2\n\"a\" \"b\"\n\"ab\" \"</w>\"\n" +
		"5\n"
	require.NoError(t, tok.LoadFrom(strings.NewReader(body), "inline"))

	assert.Equal(t, 5, tok.VocabSize())
	assert.Equal(t, 5, tok.NextID())
	assert.Equal(t, []int{4}, tok.Encode("ab"))
	assert.Equal(t, []int{UnkID, UnkID}, tok.Encode("q"))
	assert.Equal(t, "ab <UNK>", tok.Decode([]int{4, UnkID}))
}

func TestLoadFromRejectsMisplacedReserved(t *testing.T) {
	type tc struct {
		desc string
		body string
	}

	reserved := "\"<PAD>\" 0\n\"<UNK>\" 1\n\"<BOS>\" 2\n\"<EOS>\" 3\n"
	reservedIDs := "0 \"<PAD>\"\n1 \"<UNK>\"\n2 \"<BOS>\"\n3 \"<EOS>\"\n"

	tcs := []tc{
		{
			desc: "no reserved tokens",
			body: "TOK\n1\n\"zz</w>\" 1\n1\n1 \"zz</w>\"\n0\n2\n",
		},
		{
			desc: "unk replaced by a learned token",
			body: "TOK\n4\n\"<PAD>\" 0\n\"zz</w>\" 1\n\"<BOS>\" 2\n\"<EOS>\" 3\n" +
				"4\n0 \"<PAD>\"\n1 \"zz</w>\"\n2 \"<BOS>\"\n3 \"<EOS>\"\n0\n4\n",
		},
		{
			desc: "reserved tokens shifted",
			body: "TOK\n4\n\"<PAD>\" 1\n\"<UNK>\" 2\n\"<BOS>\" 3\n\"<EOS>\" 4\n" +
				"4\n1 \"<PAD>\"\n2 \"<UNK>\"\n3 \"<BOS>\"\n4 \"<EOS>\"\n0\n5\n",
		},
		{
			desc: "well formed",
			body: "TOK\n4\n" + reserved + "4\n" + reservedIDs + "0\n4\n",
		},
	}

	for i, tc := range tcs {
		tok := trainedLow(t)
		err := tok.LoadFrom(strings.NewReader(tc.body), "inline")
		if tc.desc == "well formed" {
			require.NoError(t, err, "\ncase %d: %s", i, tc.desc)
			continue
		}

		var fe *FormatError
		require.True(t, errors.As(err, &fe), "\ncase %d: %s: %v", i, tc.desc, err)
		assert.Contains(t, fe.Reason, "reserved", "\ncase %d: %s", i, tc.desc)
		assert.Equal(t, 4, tok.NumMerges(), "state unchanged, case %d: %s", i, tc.desc)
	}
}
