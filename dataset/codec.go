// Package dataset reads and writes the training set: a headerless stream of
// variable-length little-endian records
//
//	[count:u8][feature:u16 × count][cp:i16]
//
// terminated by end of file.
package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/exp/constraints"

	"goose-nnue/features"
)

const (
	MaxFeatures = 255
	MaxCP       = 1000
	MinCP       = -MaxCP
)

var (
	ErrRecordTooLarge    = errors.New("record has more than 255 features")
	ErrFeatureOutOfRange = errors.New("feature index out of range")
	ErrTruncatedRecord   = errors.New("truncated record")
)

// Record is one training position with its evaluation in centipawns.
type Record struct {
	Features features.Set
	CP       int
}

func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampCP bounds a centipawn score to [-1000, 1000].
func ClampCP(cp int) int {
	return clamp(cp, MinCP, MaxCP)
}

// EncodedSize returns the number of bytes rec occupies on disk.
func EncodedSize(rec Record) int {
	return 1 + 2*len(rec.Features) + 2
}

// AppendRecord serializes rec to w. The score is clamped before it is
// written; nothing is written when the record is rejected.
func AppendRecord(w io.Writer, rec Record) error {
	if len(rec.Features) > MaxFeatures {
		return fmt.Errorf("%w: %d", ErrRecordTooLarge, len(rec.Features))
	}
	buf := make([]byte, EncodedSize(rec))
	buf[0] = uint8(len(rec.Features))
	off := 1
	for _, f := range rec.Features {
		if int(f) >= features.NumFeatures {
			return fmt.Errorf("%w: %d", ErrFeatureOutOfRange, f)
		}
		binary.LittleEndian.PutUint16(buf[off:], uint16(f))
		off += 2
	}
	binary.LittleEndian.PutUint16(buf[off:], uint16(int16(ClampCP(rec.CP))))
	_, err := w.Write(buf)
	return err
}

// Reader decodes records one at a time:
//
//	r := dataset.NewReader(f)
//	for r.Next() {
//		rec := r.Record()
//	}
//	if err := r.Err(); err != nil { ... }
//
// The Features slice of the current record is reused by the following call
// to Next.
type Reader struct {
	br     *bufio.Reader
	rec    Record
	buf    []byte
	n      int
	offset int64
	err    error
}

func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 1<<16)
	}
	return &Reader{br: br, buf: make([]byte, 2*MaxFeatures+2)}
}

func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	count, err := r.br.ReadByte()
	if err == io.EOF {
		return false
	}
	if err != nil {
		r.err = fmt.Errorf("read record %d: %w", r.n, err)
		return false
	}
	body := r.buf[:2*int(count)+2]
	if _, err := io.ReadFull(r.br, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = ErrTruncatedRecord
		}
		r.err = fmt.Errorf("record %d at offset %d: %w", r.n, r.offset, err)
		return false
	}
	feats := r.rec.Features[:0]
	for i := 0; i < int(count); i++ {
		f := binary.LittleEndian.Uint16(body[2*i:])
		if int(f) >= features.NumFeatures {
			r.err = fmt.Errorf("record %d at offset %d: %w: %d", r.n, r.offset, ErrFeatureOutOfRange, f)
			return false
		}
		feats = append(feats, features.Feature(f))
	}
	r.rec.Features = feats
	r.rec.CP = int(int16(binary.LittleEndian.Uint16(body[2*int(count):])))
	r.offset += int64(1 + len(body))
	r.n++
	return true
}

func (r *Reader) Record() Record { return r.rec }

// Count is the number of records decoded so far.
func (r *Reader) Count() int { return r.n }

func (r *Reader) Err() error { return r.err }

// ReadAll decodes every record of r into memory.
func ReadAll(r io.Reader) ([]Record, error) {
	var out []Record
	rd := NewReader(r)
	for rd.Next() {
		rec := rd.Record()
		set := make(features.Set, len(rec.Features))
		copy(set, rec.Features)
		out = append(out, Record{Features: set, CP: rec.CP})
	}
	return out, rd.Err()
}
