package tuner

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"testing"

	"goose-nnue/dataset"
	"goose-nnue/features"
)

// getBenchData tries to load a dataset from env var TUNER_BENCH_DATA.
// If missing, it returns a small synthetic set built from a few fixed FENs.
func getBenchData(b *testing.B, max int) dataset.Bytes {
	if path := os.Getenv("TUNER_BENCH_DATA"); path != "" {
		f, err := os.Open(path)
		if err == nil {
			defer f.Close()
			rd := dataset.NewReader(f)
			var buf bytes.Buffer
			for rd.Count() < max && rd.Next() {
				if err := dataset.AppendRecord(&buf, rd.Record()); err != nil {
					b.Fatal(err)
				}
			}
			if rd.Err() == nil && buf.Len() > 0 {
				return dataset.Bytes(buf.Bytes())
			}
		}
	}
	// Synthetic fallback: a few diverse positions with scores
	fens := []struct {
		fen string
		cp  int
	}{
		{"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w - - 0 1", 20},
		{"r1bqkbnr/pppp1ppp/2n5/4p3/1b1P4/5NP1/PPPNPPBP/R1BQK2R w KQkq - 4 6", 45},
		{"r2q1rk1/pp1nbppp/2p1bn2/3p2B1/3P4/2N1PN2/PPQ2PPP/R3KB1R w KQ - 2 10", 31},
		{"r1bq1rk1/pp2bppp/2n1pn2/2pp4/3P1B2/2P1PN2/PP1NBPPP/R2Q1RK1 w - - 6 8", 12},
		{"r4rk1/1bqnbppp/p1n1p3/1pppP3/3P1P2/2PBBN2/PP1QN1PP/2KR3R w - - 0 14", 58},
		{"r1bq1rk1/ppp2ppp/2n2n2/3pp3/1b1P4/2P1PN2/PP1N1PPP/R1BQKB1R w KQ - 2 7", -18},
	}
	var buf bytes.Buffer
	for n := 0; n < max; {
		for _, it := range fens {
			if n >= max {
				break
			}
			set, err := features.EncodeFEN(features.Goose, it.fen)
			if err != nil {
				b.Fatal(err)
			}
			if err := dataset.AppendRecord(&buf, dataset.Record{Features: set, CP: it.cp}); err != nil {
				b.Fatal(err)
			}
			n++
		}
	}
	return dataset.Bytes(buf.Bytes())
}

// BenchmarkTrainEpoch runs one epoch per iteration. Use env vars to control size:
//   - TUNER_BENCH_DATA: path to dataset file (optional)
//   - TUNER_BENCH_ROWS: max records to load (default 20000)
func BenchmarkTrainEpoch(b *testing.B) {
	rows := 20000
	if v := os.Getenv("TUNER_BENCH_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rows = n
		}
	}
	data := getBenchData(b, rows)

	for _, sparse := range []bool{true, false} {
		name := "dense"
		if sparse {
			name = "sparse"
		}
		b.Run(name, func(b *testing.B) {
			p := NewParams()
			p.Init(42)
			opt := NewAdam(NumParams, DefaultLR)
			cfg := DefaultTrainConfig()
			cfg.Epochs = 1
			cfg.ReportEvery = 0
			cfg.Sparse = sparse
			cfg.Logger = quiet
			src := data
			if !sparse {
				// A dense step touches every weight; keep the epoch short.
				src = getBenchData(b, 64)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Train(context.Background(), src, p, opt, cfg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
