package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Magic identifies a sequence store file.
const Magic = "SEQBIN"

// ErrFormat is returned for files that are not valid sequence stores.
var ErrFormat = errors.New("dataset: invalid sequence file")

type storeFile struct {
	Magic       string  `cbor:"1,keyasint"`
	ContextSize int     `cbor:"2,keyasint"`
	Sequences   [][]int `cbor:"3,keyasint"`
}

// Save writes s to path as CBOR, creating parent directories as needed.
func Save(path string, s *Sequences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create sequence dir for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create sequence file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := cbor.NewEncoder(w).Encode(storeFile{
		Magic:       Magic,
		ContextSize: s.ContextSize,
		Sequences:   s.Data,
	}); err != nil {
		return errors.Wrapf(err, "encode sequences %s", path)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "write sequences %s", path)
	}
	return f.Close()
}

// Load reads a sequence store written by Save.
func Load(path string) (*Sequences, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open sequence file")
	}
	defer f.Close()

	var sf storeFile
	if err := cbor.NewDecoder(bufio.NewReader(f)).Decode(&sf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	if sf.Magic != Magic {
		return nil, fmt.Errorf("%w: %s: bad magic %q", ErrFormat, path, sf.Magic)
	}
	for i, seq := range sf.Sequences {
		if len(seq) != sf.ContextSize {
			return nil, fmt.Errorf("%w: %s: sequence %d has length %d, want %d", ErrFormat, path, i, len(seq), sf.ContextSize)
		}
	}

	return &Sequences{ContextSize: sf.ContextSize, Data: sf.Sequences}, nil
}
