package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/djeday123/gobpe/pkg/dataset"
	"github.com/djeday123/gobpe/tokenizer"
)

func (c *cli) inspectCmd() *cobra.Command {
	var limit int
	var vocab bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the merges or vocabulary of a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := c.tokenizer()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "snapshot: %s\ntokens:   %s\nmerges:   %s\nnext id:  %d\n\n",
				c.cfg.SnapshotPath, humanize.Comma(int64(tok.VocabSize())),
				humanize.Comma(int64(tok.NumMerges())), tok.NextID())

			if vocab {
				renderVocab(out, tok, limit)
			} else {
				renderMerges(out, tok, limit)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows to show (0 for all)")
	cmd.Flags().BoolVar(&vocab, "vocab", false, "list vocabulary entries instead of merges")
	return cmd
}

func renderMerges(w io.Writer, tok *tokenizer.BPE, limit int) {
	var data [][]string
	for i, m := range tok.Merges() {
		if limit > 0 && i >= limit {
			break
		}
		id, _ := tok.TokenID(m.Merged())
		data = append(data, []string{
			strconv.Itoa(i + 1), strconv.Quote(m.Left), strconv.Quote(m.Right),
			strconv.Quote(m.Merged()), strconv.Itoa(id),
		})
	}
	renderTable(w, []string{"RANK", "LEFT", "RIGHT", "TOKEN", "ID"}, data)
}

func renderVocab(w io.Writer, tok *tokenizer.BPE, limit int) {
	var data [][]string
	for id := 0; id < tok.NextID(); id++ {
		if limit > 0 && len(data) >= limit {
			break
		}
		if s, ok := tok.Token(id); ok {
			data = append(data, []string{strconv.Itoa(id), strconv.Quote(s)})
		}
	}
	renderTable(w, []string{"ID", "TOKEN"}, data)
}

func renderTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func (c *cli) sequencesCmd() *cobra.Command {
	var show int

	cmd := &cobra.Command{
		Use:   "sequences [PATH]",
		Short: "Summarize a sequence file written by 'gobpe train'",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.SequencePath
			if len(args) == 1 {
				path = args[0]
			}

			seqs, err := dataset.Load(path)
			if err != nil {
				return err
			}

			train, eval := seqs.Split(c.cfg.EvalFraction)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sequences: %s (context %d, %s tokens)\ntrain:     %d\neval:      %d\n",
				humanize.Comma(int64(seqs.Len())), seqs.ContextSize,
				humanize.Comma(int64(seqs.Len()*seqs.ContextSize)), train.Len(), eval.Len())

			if show <= 0 || seqs.Len() == 0 {
				return nil
			}

			tok, err := c.tokenizer()
			if err != nil {
				return err
			}
			for i := 0; i < show && i < seqs.Len(); i++ {
				fmt.Fprintf(out, "\n[%d] %s\n", i, tok.Decode(seqs.Data[i]))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&show, "show", 0, "decode and print the first N sequences")
	return cmd
}
