package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djeday123/gobpe/pkg/config"
	"github.com/djeday123/gobpe/pkg/corpus"
	"github.com/djeday123/gobpe/pkg/dataset"
	"github.com/djeday123/gobpe/tokenizer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	corpusDir := filepath.Join(dir, "corpus")
	require.NoError(t, os.MkdirAll(corpusDir, 0o755))
	for name, text := range map[string]string{
		"one.txt": strings.Repeat("the quick brown fox jumps over the lazy dog ", 20),
		"two.txt": strings.Repeat("a lazy dog sleeps in the sun all day long ", 20),
	} {
		require.NoError(t, os.WriteFile(filepath.Join(corpusDir, name), []byte(text), 0o644))
	}

	cfg := config.DefaultConfig()
	cfg.CorpusDir = corpusDir
	cfg.VocabSize = 40
	cfg.ContextSize = 8
	cfg.EvalFraction = 0.25
	cfg.SnapshotPath = filepath.Join(dir, "out", "tokenizer.tok")
	cfg.SequencePath = filepath.Join(dir, "out", "sequences.seq")
	return cfg
}

func quiet() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestRunTrainsThenLoads(t *testing.T) {
	cfg := testConfig(t)

	res, err := New(cfg, quiet()).Run(context.Background(), Options{})
	require.NoError(t, err)
	require.True(t, res.Trained)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 40, res.Stats.VocabSize)
	assert.FileExists(t, cfg.SnapshotPath)
	assert.FileExists(t, cfg.SequencePath)

	require.NotNil(t, res.Train)
	total := res.Train.Len() + res.Eval.Len()
	assert.Positive(t, total)
	assert.Equal(t, total/4, res.Eval.Len())

	stored, err := dataset.Load(cfg.SequencePath)
	require.NoError(t, err)
	assert.Equal(t, total, stored.Len())
	for _, seq := range stored.Data {
		assert.Len(t, seq, cfg.ContextSize)
	}

	again, err := New(cfg, quiet()).Run(context.Background(), Options{SkipSequences: true})
	require.NoError(t, err)
	assert.False(t, again.Trained, "second run loads the snapshot")
	assert.Equal(t, res.Tokenizer.Merges(), again.Tokenizer.Merges())
	assert.Nil(t, again.Train)
}

func TestRunRetrain(t *testing.T) {
	cfg := testConfig(t)
	_, err := New(cfg, quiet()).Run(context.Background(), Options{SkipSequences: true})
	require.NoError(t, err)

	cfg.VocabSize = 20
	res, err := New(cfg, quiet()).Run(context.Background(), Options{Retrain: true, SkipSequences: true})
	require.NoError(t, err)
	assert.True(t, res.Trained)
	assert.Equal(t, 20, res.Tokenizer.VocabSize())
	assert.NoFileExists(t, cfg.SequencePath)

	loaded, err := tokenizer.LoadBPE(cfg.SnapshotPath, tokenizer.WithLogger(quiet()))
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.VocabSize())
}

func TestRunCorruptSnapshot(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.SnapshotPath), 0o755))
	require.NoError(t, os.WriteFile(cfg.SnapshotPath, []byte("garbage\n"), 0o644))

	_, err := New(cfg, quiet()).Run(context.Background(), Options{})
	var fe *tokenizer.FormatError
	assert.ErrorAs(t, err, &fe, "a corrupt snapshot is not silently retrained")
}

func TestRunEmptyCorpus(t *testing.T) {
	cfg := testConfig(t)
	cfg.CorpusDir = t.TempDir()

	_, err := New(cfg, quiet()).Run(context.Background(), Options{})
	assert.ErrorIs(t, err, corpus.ErrNoDocuments)
	assert.NoFileExists(t, cfg.SnapshotPath)
}
