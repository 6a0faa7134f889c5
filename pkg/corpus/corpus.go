// Package corpus reads raw training text from a directory tree.
package corpus

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrNoDocuments is returned when a walk finds no readable, non-blank files.
var ErrNoDocuments = errors.New("corpus: no documents found")

// Document is one text file of the corpus.
type Document struct {
	Path string
	Text string
}

// Options control which files are read and how.
type Options struct {
	// Extensions filters files by suffix, case-insensitively. Empty means ".txt".
	Extensions []string
	// Concurrency bounds parallel file reads. Values below 1 mean 1.
	Concurrency int
	// Logger receives per-file and summary records. Nil means slog.Default().
	Logger *slog.Logger
}

// Load walks dir recursively and reads every matching file. Documents are
// returned sorted by path. Blank files are skipped; unreadable files are
// logged and skipped.
func Load(ctx context.Context, dir string, opts Options) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "corpus dir %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("corpus dir %s is not a directory", dir)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	paths, err := findFiles(dir, opts.Extensions)
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			buf, err := os.ReadFile(path)
			if err != nil {
				log.Warn("corpus: skipping unreadable file", "path", path, "error", err)
				return nil
			}
			if strings.TrimSpace(string(buf)) == "" {
				log.Debug("corpus: skipping blank file", "path", path)
				return nil
			}
			log.Debug("corpus: loaded", "path", path, "size", humanize.Bytes(uint64(len(buf))))
			docs[i] = &Document{Path: path, Text: string(buf)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Document
	var total uint64
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
			total += uint64(len(d.Text))
		}
	}
	if len(out) == 0 {
		return nil, errors.Wrap(ErrNoDocuments, dir)
	}

	log.Info("corpus: loaded documents", "dir", dir, "files", humanize.Comma(int64(len(out))), "size", humanize.Bytes(total))
	return out, nil
}

// Texts returns the text of each document.
func Texts(docs []Document) []string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	return texts
}

func findFiles(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = []string{".txt"}
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && hasExtension(path, exts) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk corpus dir %s", dir)
	}

	sort.Strings(paths)
	return paths, nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}
	return false
}
