package dataset

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"

	"goose-nnue/features"
)

type IngestConfig struct {
	Backend       features.Backend
	MaxRecords    int // 0 = no cap
	Workers       int
	ChunkSize     int // lines encoded concurrently before they are written in order
	ProgressEvery int // lines between progress logs, 0 = quiet
	MaxLineBytes  int // longer lines are skipped as malformed, 0 = 16 MiB
	Logger        *log.Logger
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Backend:       features.Goose,
		MaxRecords:    500_000,
		Workers:       runtime.NumCPU(),
		ChunkSize:     4096,
		ProgressEvery: 100_000,
	}
}

// IngestStats counts what happened to every consumed corpus line.
type IngestStats struct {
	Lines     int
	Written   int
	Malformed int
	MateOnly  int
}

func (s IngestStats) String() string {
	return fmt.Sprintf("lines=%d written=%d malformed=%d mate_only=%d",
		s.Lines, s.Written, s.Malformed, s.MateOnly)
}

type lineStatus uint8

const (
	lineOK lineStatus = iota
	lineMalformed
	lineMate
)

type lineResult struct {
	rec    Record
	status lineStatus
}

const maxLineSize = 16 << 20

// Ingest turns annotated corpus lines into dataset records. Unreadable lines
// and mate-only evaluations are skipped; records keep corpus order.
func Ingest(ctx context.Context, r io.Reader, w RecordWriter, cfg IngestConfig) (IngestStats, error) {
	var stats IngestStats
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = 4096
	}

	limit := cfg.MaxLineBytes
	if limit <= 0 {
		limit = maxLineSize
	}

	br := bufio.NewReaderSize(r, 1<<20)
	lines := make([][]byte, 0, chunk)
	results := make([]lineResult, chunk)
	var readErr error
	for readErr == nil {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		lines = lines[:0]
		for len(lines) < chunk {
			line, err := readLine(br, limit)
			if err != nil {
				readErr = err
				break
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			break
		}
		if err := encodeChunk(ctx, lines, results, workers, cfg.Backend); err != nil {
			return stats, err
		}
		for i := range lines {
			if cfg.MaxRecords > 0 && stats.Written >= cfg.MaxRecords {
				return stats, nil
			}
			stats.Lines++
			switch results[i].status {
			case lineMalformed:
				stats.Malformed++
			case lineMate:
				stats.MateOnly++
			default:
				if err := w.Write(results[i].rec); err != nil {
					return stats, err
				}
				stats.Written++
			}
			if cfg.ProgressEvery > 0 && stats.Lines%cfg.ProgressEvery == 0 {
				logger.Printf("ingest: %s", stats)
			}
		}
	}
	if readErr != io.EOF {
		return stats, fmt.Errorf("read corpus line %d: %w", stats.Lines+1, readErr)
	}
	return stats, nil
}

// readLine returns the next line without its terminator. A line longer than
// limit is consumed up to its newline and returned as nil, which never parses.
func readLine(br *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		frag, err := br.ReadSlice('\n')
		if !tooLong {
			// Two bytes of slack for the CRLF terminator.
			if len(line)+len(frag) > limit+2 {
				tooLong, line = true, nil
			} else {
				line = append(line, frag...)
			}
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && (len(line) > 0 || tooLong):
		case err != nil:
			return nil, err
		}
		line = bytes.TrimSuffix(line, []byte{'\n'})
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if tooLong || len(line) > limit {
			return nil, nil
		}
		return line, nil
	}
}

func encodeChunk(ctx context.Context, lines [][]byte, out []lineResult, workers int, backend features.Backend) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	per := (len(lines) + workers - 1) / workers
	for start := 0; start < len(lines); start += per {
		start, end := start, min(start+per, len(lines))
		g.Go(func() error {
			for i := start; i < end; i++ {
				res, err := processLine(lines[i], backend)
				if err != nil {
					return fmt.Errorf("corpus line %q: %w", lines[i], err)
				}
				out[i] = res
			}
			return nil
		})
	}
	return g.Wait()
}

// processLine only fails for positions the board backend should never have
// produced; everything else is a skippable defect of the corpus.
func processLine(line []byte, backend features.Backend) (lineResult, error) {
	entry, err := ParseEntry(line)
	if err != nil {
		return lineResult{status: lineMalformed}, nil
	}
	cp, mate, err := entry.Score()
	if err != nil {
		return lineResult{status: lineMalformed}, nil
	}
	if mate {
		return lineResult{status: lineMate}, nil
	}
	set, err := features.EncodeFEN(backend, entry.FEN)
	if err != nil {
		if errors.Is(err, features.ErrInvalidPosition) {
			return lineResult{}, err
		}
		return lineResult{status: lineMalformed}, nil
	}
	return lineResult{rec: Record{Features: set, CP: ClampCP(cp)}}, nil
}
