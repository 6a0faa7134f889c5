// Package pipeline ties corpus loading, vocabulary training, snapshot
// persistence and sequence building together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/djeday123/gobpe/pkg/config"
	"github.com/djeday123/gobpe/pkg/corpus"
	"github.com/djeday123/gobpe/pkg/dataset"
	"github.com/djeday123/gobpe/tokenizer"
)

// Options select which stages Run performs.
type Options struct {
	// Retrain ignores an existing snapshot and trains from the corpus.
	Retrain bool
	// SkipSequences stops after the tokenizer is ready.
	SkipSequences bool
}

// Result describes what a Run did.
type Result struct {
	Tokenizer *tokenizer.BPE
	Trained   bool
	Stats     tokenizer.TrainStats
	Documents int

	Train, Eval *dataset.Sequences
}

// Pipeline runs the tokenizer workflow for one configuration.
type Pipeline struct {
	cfg *config.Config
	log *slog.Logger

	docs []corpus.Document
}

// New creates a Pipeline. A nil logger means slog.Default().
func New(cfg *config.Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Run loads the snapshot at cfg.SnapshotPath or, when it is missing or
// opts.Retrain is set, trains a new vocabulary from the corpus and saves it.
// Unless opts.SkipSequences is set it then encodes the corpus into
// fixed-length sequences, saves them to cfg.SequencePath and splits them into
// train and eval sets.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}

	tok, err := p.loadTokenizer(opts.Retrain)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		texts, err := p.corpus(ctx)
		if err != nil {
			return nil, err
		}

		tok = p.newTokenizer()
		res.Stats = tok.Train(texts, p.cfg.VocabSize)
		res.Trained = true

		if err := tok.Save(p.cfg.SnapshotPath); err != nil {
			return nil, fmt.Errorf("save tokenizer: %w", err)
		}
	}
	res.Tokenizer = tok

	if opts.SkipSequences {
		res.Documents = len(p.docs)
		return res, nil
	}

	texts, err := p.corpus(ctx)
	if err != nil {
		return nil, err
	}
	res.Documents = len(p.docs)

	encoded, err := tok.EncodeBatch(ctx, texts, p.cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}

	seqs := dataset.Build(encoded, p.cfg.ContextSize)
	if err := dataset.Save(p.cfg.SequencePath, seqs); err != nil {
		return nil, fmt.Errorf("save sequences: %w", err)
	}
	res.Train, res.Eval = seqs.Split(p.cfg.EvalFraction)

	p.log.Info("pipeline: sequences ready", "path", p.cfg.SequencePath,
		"context", p.cfg.ContextSize, "train", res.Train.Len(), "eval", res.Eval.Len())
	return res, nil
}

func (p *Pipeline) newTokenizer() *tokenizer.BPE {
	return tokenizer.NewBPE(tokenizer.WithCacheSize(p.cfg.CacheSize), tokenizer.WithLogger(p.log))
}

// loadTokenizer returns nil, nil when a new tokenizer has to be trained.
func (p *Pipeline) loadTokenizer(retrain bool) (*tokenizer.BPE, error) {
	if retrain {
		return nil, nil
	}

	tok := p.newTokenizer()
	err := tok.Load(p.cfg.SnapshotPath)
	switch {
	case errors.Is(err, tokenizer.ErrSnapshotMissing):
		p.log.Info("pipeline: no snapshot, training from corpus", "path", p.cfg.SnapshotPath)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return tok, nil
}

// corpus loads the documents once per Pipeline.
func (p *Pipeline) corpus(ctx context.Context) ([]string, error) {
	if p.docs == nil {
		docs, err := corpus.Load(ctx, p.cfg.CorpusDir, corpus.Options{
			Extensions:  p.cfg.Extensions,
			Concurrency: p.cfg.Concurrency,
			Logger:      p.log,
		})
		if err != nil {
			return nil, err
		}
		p.docs = docs
	}
	return corpus.Texts(p.docs), nil
}
