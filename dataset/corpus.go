package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// PV is one principal variation of an annotated position. Exactly one of CP
// and Mate is set.
type PV struct {
	CP   *int   `json:"cp,omitempty"`
	Mate *int   `json:"mate,omitempty"`
	Line string `json:"line,omitempty"`
}

type Eval struct {
	Depth  int   `json:"depth"`
	Knodes int64 `json:"knodes,omitempty"`
	PVs    []PV  `json:"pvs"`
}

// Entry is one line of the lichess evaluation export.
type Entry struct {
	FEN   string `json:"fen"`
	Evals []Eval `json:"evals"`
}

var (
	errNoEvals = errors.New("no evaluations")
	errNoPV    = errors.New("deepest evaluation has no principal variation")
	errNoFEN   = errors.New("missing fen")
)

// ParseEntry decodes one corpus line.
func ParseEntry(line []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return Entry{}, err
	}
	if e.FEN == "" {
		return Entry{}, errNoFEN
	}
	return e, nil
}

// Deepest returns the evaluation with the greatest depth; the first one wins
// a tie.
func (e *Entry) Deepest() (*Eval, error) {
	if len(e.Evals) == 0 {
		return nil, errNoEvals
	}
	best := &e.Evals[0]
	for i := 1; i < len(e.Evals); i++ {
		if e.Evals[i].Depth > best.Depth {
			best = &e.Evals[i]
		}
	}
	return best, nil
}

// Score picks the centipawn target of the entry: the first PV of the deepest
// evaluation. mate reports a PV that only carries a mate score.
func (e *Entry) Score() (cp int, mate bool, err error) {
	ev, err := e.Deepest()
	if err != nil {
		return 0, false, err
	}
	if len(ev.PVs) == 0 {
		return 0, false, errNoPV
	}
	pv := ev.PVs[0]
	if pv.CP == nil {
		return 0, true, nil
	}
	return *pv.CP, false, nil
}

type corpusFile struct {
	io.Reader
	f   *os.File
	dec *zstd.Decoder
}

func (c *corpusFile) Close() error {
	if c.dec != nil {
		c.dec.Close()
	}
	return c.f.Close()
}

// OpenCorpus opens an annotated corpus, decompressing .zst files on the fly.
func OpenCorpus(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return &corpusFile{Reader: f, f: f}, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &corpusFile{Reader: dec, f: f, dec: dec}, nil
}
