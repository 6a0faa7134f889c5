package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/djeday123/gobpe/pkg/config"
	"github.com/djeday123/gobpe/pkg/logutil"
	"github.com/djeday123/gobpe/pkg/pipeline"
	"github.com/djeday123/gobpe/tokenizer"
)

// cli carries state shared by all subcommands.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func NewCLI() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "gobpe",
		Short: "Train and apply byte-pair-encoding vocabularies",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			return c.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "trace, debug, info, warn or error")
	rootCmd.PersistentFlags().String("snapshot", "", "tokenizer snapshot path (overrides config)")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		c.trainCmd(),
		c.encodeCmd(),
		c.decodeCmd(),
		c.inspectCmd(),
		c.sequencesCmd(),
	)
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("snapshot"); path != "" {
		cfg.SnapshotPath = path
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	level, err := logutil.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logutil.SetDefault(cmd.ErrOrStderr(), level)

	c.cfg = cfg
	return nil
}

func (c *cli) trainCmd() *cobra.Command {
	var opts pipeline.Options

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a vocabulary from a corpus directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("corpus") {
				c.cfg.CorpusDir, _ = flags.GetString("corpus")
			}
			if flags.Changed("vocab-size") {
				c.cfg.VocabSize, _ = flags.GetInt("vocab-size")
			}
			if flags.Changed("context-size") {
				c.cfg.ContextSize, _ = flags.GetInt("context-size")
			}
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			res, err := pipeline.New(c.cfg, nil).Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Trained {
				fmt.Fprintf(out, "trained %s tokens (%s merges) from %s words in %d documents\n",
					humanize.Comma(int64(res.Stats.VocabSize)), humanize.Comma(int64(res.Stats.Merges)),
					humanize.Comma(int64(res.Stats.Words)), res.Documents)
				if res.Stats.Saturated {
					fmt.Fprintln(out, "stopped early: no adjacent pairs left")
				}
			} else {
				fmt.Fprintf(out, "loaded %s tokens from %s\n", humanize.Comma(int64(res.Tokenizer.VocabSize())), c.cfg.SnapshotPath)
			}
			if res.Train != nil {
				fmt.Fprintf(out, "sequences: %d train, %d eval (context %d) -> %s\n",
					res.Train.Len(), res.Eval.Len(), c.cfg.ContextSize, c.cfg.SequencePath)
			}
			return nil
		},
	}

	cmd.Flags().String("corpus", "", "corpus directory (overrides config)")
	cmd.Flags().Int("vocab-size", 0, "target vocabulary size (overrides config)")
	cmd.Flags().Int("context-size", 0, "sequence length (overrides config)")
	cmd.Flags().BoolVar(&opts.Retrain, "retrain", false, "train even if a snapshot exists")
	cmd.Flags().BoolVar(&opts.SkipSequences, "no-sequences", false, "do not build training sequences")
	return cmd
}

func (c *cli) encodeCmd() *cobra.Command {
	var specials, pieces bool

	cmd := &cobra.Command{
		Use:   "encode [TEXT...]",
		Short: "Encode text to token ids (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := c.tokenizer()
			if err != nil {
				return err
			}

			text, err := argsOrStdin(cmd, args)
			if err != nil {
				return err
			}

			var ids []int
			if specials {
				ids = tok.EncodeWithSpecials(text)
			} else {
				ids = tok.Encode(text)
			}

			out := cmd.OutOrStdout()
			if pieces {
				fmt.Fprintln(out, strings.Join(quoteAll(tok.DecodeTokens(ids)), " | "))
			}
			fmt.Fprintln(out, joinInts(ids))
			return nil
		},
	}

	cmd.Flags().BoolVar(&specials, "specials", false, "wrap the output in <BOS> ... <EOS>")
	cmd.Flags().BoolVar(&pieces, "pieces", false, "also print the token pieces")
	return cmd
}

func (c *cli) decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode ID...",
		Short: "Decode token ids to text (reads stdin when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := c.tokenizer()
			if err != nil {
				return err
			}

			text, err := argsOrStdin(cmd, args)
			if err != nil {
				return err
			}

			var ids []int
			for _, f := range strings.Fields(text) {
				id, err := strconv.Atoi(f)
				if err != nil {
					return fmt.Errorf("invalid token id %q", f)
				}
				ids = append(ids, id)
			}

			fmt.Fprintln(cmd.OutOrStdout(), tok.Decode(ids))
			return nil
		},
	}
}

// tokenizer loads the configured snapshot. Unlike training, a missing
// snapshot is an error here.
func (c *cli) tokenizer() (*tokenizer.BPE, error) {
	tok, err := tokenizer.LoadBPE(c.cfg.SnapshotPath, tokenizer.WithCacheSize(c.cfg.CacheSize))
	if errors.Is(err, tokenizer.ErrSnapshotMissing) {
		return nil, fmt.Errorf("no tokenizer at %s, run 'gobpe train' first", c.cfg.SnapshotPath)
	}
	return tok, err
}

func argsOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	buf, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strconv.Quote(s)
	}
	return out
}
