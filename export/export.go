// Package export quantizes a trained network and writes it in the engine's
// big-endian net format:
//
//	[hidden:i32][features:i32][w1: features×hidden i16][b1: hidden i32][w2: hidden i16][b2: i32]
//
// Every value is round(x × Scale), rounding halves away from zero.
package export

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"goose-nnue/features"
	"goose-nnue/tuner"
)

const Scale = 64

var (
	ErrOverflow  = errors.New("quantized value out of range")
	ErrBadHeader = errors.New("bad net header")
)

// OverflowError reports the first weight that does not fit its integer type.
type OverflowError struct {
	Tensor string
	Index  int
	Value  float64
	Bits   int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s[%d] = %g scales to %g, outside int%d", e.Tensor, e.Index, e.Value, e.Value*Scale, e.Bits)
}

func (e *OverflowError) Unwrap() error { return ErrOverflow }

// Net is the quantized network.
type Net struct {
	Hidden int
	W1     []int16 // row f starts at f*Hidden
	B1     []int32
	W2     []int16
	B2     int32
}

// FileSize is the length in bytes of a net with the given hidden width.
func FileSize(hidden int) int64 {
	return 4 + 4 + int64(features.NumFeatures*hidden)*2 + int64(hidden)*4 + int64(hidden)*2 + 4
}

func quantize16(tensor string, i int, x float64) (int16, error) {
	q := math.Round(x * Scale)
	if math.IsNaN(q) || q < math.MinInt16 || q > math.MaxInt16 {
		return 0, &OverflowError{Tensor: tensor, Index: i, Value: x, Bits: 16}
	}
	return int16(q), nil
}

func quantize32(tensor string, i int, x float64) (int32, error) {
	q := math.Round(x * Scale)
	if math.IsNaN(q) || q < math.MinInt32 || q > math.MaxInt32 {
		return 0, &OverflowError{Tensor: tensor, Index: i, Value: x, Bits: 32}
	}
	return int32(q), nil
}

// Quantize converts p to fixed point. W1 rows are converted concurrently;
// when several weights overflow the one with the lowest index is reported.
func Quantize(p *tuner.Params) (*Net, error) {
	n := &Net{
		Hidden: tuner.Hidden,
		W1:     make([]int16, len(p.W1)),
		B1:     make([]int32, len(p.B1)),
		W2:     make([]int16, len(p.W2)),
	}

	workers := runtime.NumCPU()
	per := (features.NumFeatures + workers - 1) / workers * tuner.Hidden
	errs := make([]error, (len(p.W1)+per-1)/per)
	var g errgroup.Group
	for k := range errs {
		k := k
		g.Go(func() error {
			start, end := k*per, min((k+1)*per, len(p.W1))
			for i := start; i < end; i++ {
				q, err := quantize16("w1", i, p.W1[i])
				if err != nil {
					errs[k] = err
					return err
				}
				n.W1[i] = q
			}
			return nil
		})
	}
	if g.Wait() != nil {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}

	var err error
	for i, x := range p.B1 {
		if n.B1[i], err = quantize32("b1", i, x); err != nil {
			return nil, err
		}
	}
	for i, x := range p.W2 {
		if n.W2[i], err = quantize16("w2", i, x); err != nil {
			return nil, err
		}
	}
	if n.B2, err = quantize32("b2", 0, p.B2[0]); err != nil {
		return nil, err
	}
	return n, nil
}

// WriteNet serializes n big-endian.
func WriteNet(w io.Writer, n *Net) error {
	bw := bufio.NewWriterSize(w, 1<<16)
	header := []int32{int32(n.Hidden), features.NumFeatures}
	for _, v := range []any{header, n.W1, n.B1, n.W2, n.B2} {
		if err := binary.Write(bw, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Export quantizes p and writes it to w. Nothing is written when
// quantization fails.
func Export(w io.Writer, p *tuner.Params) (*Net, error) {
	n, err := Quantize(p)
	if err != nil {
		return nil, err
	}
	if err := WriteNet(w, n); err != nil {
		return nil, fmt.Errorf("write net: %w", err)
	}
	return n, nil
}

// ExportFile writes the net through a temporary file so a failed export
// never leaves a file at path.
func ExportFile(path string, p *tuner.Params) (*Net, error) {
	n, err := Quantize(p)
	if err != nil {
		return nil, err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}
	if err := WriteNet(f, n); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("write net: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	return n, nil
}

// ReadNet loads a net written by WriteNet.
func ReadNet(r io.Reader) (*Net, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	var header [2]int32
	if err := binary.Read(br, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	hidden, nfeat := int(header[0]), int(header[1])
	if nfeat != features.NumFeatures {
		return nil, fmt.Errorf("%w: %d features, want %d", ErrBadHeader, nfeat, features.NumFeatures)
	}
	if hidden <= 0 || hidden > 1<<16 {
		return nil, fmt.Errorf("%w: hidden width %d", ErrBadHeader, hidden)
	}
	n := &Net{
		Hidden: hidden,
		W1:     make([]int16, nfeat*hidden),
		B1:     make([]int32, hidden),
		W2:     make([]int16, hidden),
	}
	for _, v := range []any{n.W1, n.B1, n.W2, &n.B2} {
		if err := binary.Read(br, binary.BigEndian, v); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read weights: %w", err)
		}
	}
	return n, nil
}

// Summary describes the header and the value range of each tensor.
func (n *Net) Summary() string {
	lo1, hi1 := span(n.W1)
	lo2, hi2 := span(n.W2)
	lob, hib := span(n.B1)
	return fmt.Sprintf("hidden=%d features=%d w1=[%d,%d] b1=[%d,%d] w2=[%d,%d] b2=%d",
		n.Hidden, features.NumFeatures, lo1, hi1, lob, hib, lo2, hi2, n.B2)
}

func span[T int16 | int32](v []T) (lo, hi T) {
	for i, x := range v {
		if i == 0 || x < lo {
			lo = x
		}
		if i == 0 || x > hi {
			hi = x
		}
	}
	return lo, hi
}
