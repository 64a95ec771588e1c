// tuner/train.go
package tuner

import (
	"context"
	"fmt"
	"log"
	"time"

	"goose-nnue/dataset"
	"goose-nnue/features"
)

// trainer owns the per-record scratch space of a run.
type trainer struct {
	p      *Params
	opt    *Adam
	sparse bool

	pre, h, dpre []float64
	grads        []float64 // dense mode only
	mult         [features.NumFeatures]uint8
}

func newTrainer(p *Params, opt *Adam, sparse bool) *trainer {
	t := &trainer{
		p:      p,
		opt:    opt,
		sparse: sparse,
		pre:    make([]float64, Hidden),
		h:      make([]float64, Hidden),
		dpre:   make([]float64, Hidden),
	}
	if !sparse {
		t.grads = make([]float64, NumParams)
	}
	return t
}

// step runs one forward/backward pass on a single record and updates the
// parameters. It returns the squared error before the update.
func (t *trainer) step(feats features.Set, target float64) float64 {
	p := t.p
	y := p.forward(feats, t.pre, t.h)
	diff := y - target
	dy := 2 * diff

	// Gradients of the hidden layer are taken against W2 before it moves.
	for j, pre := range t.pre {
		if pre >= 0 && pre <= ActivationMax {
			t.dpre[j] = dy * p.W2[j]
		} else {
			t.dpre[j] = 0
		}
	}

	// A feature listed twice contributes its row twice.
	for _, f := range feats {
		t.mult[f]++
	}

	if t.sparse {
		t.sparseStep(feats, dy)
	} else {
		t.denseStep(feats, dy)
	}

	for _, f := range feats {
		t.mult[f] = 0
	}
	return diff * diff
}

// sparseStep only visits coordinates with a non-zero gradient.
func (t *trainer) sparseStep(feats features.Set, dy float64) {
	theta := t.p.Theta
	opt := t.opt
	update := func(i int, g float64) {
		if g != 0 {
			opt.Update(theta, i, g)
		}
	}
	opt.Tick()
	update(offB2, dy)
	for j := 0; j < Hidden; j++ {
		update(offW2+j, dy*t.h[j])
		update(offB1+j, t.dpre[j])
	}
	for _, f := range feats {
		n := t.mult[f]
		if n == 0 {
			continue
		}
		t.mult[f] = 0
		row := offW1 + int(f)*Hidden
		for j := 0; j < Hidden; j++ {
			update(row+j, float64(n)*t.dpre[j])
		}
	}
}

func (t *trainer) denseStep(feats features.Set, dy float64) {
	g := t.grads
	for i := range g {
		g[i] = 0
	}
	g[offB2] = dy
	for j := 0; j < Hidden; j++ {
		g[offW2+j] = dy * t.h[j]
		g[offB1+j] = t.dpre[j]
	}
	for _, f := range feats {
		row := offW1 + int(f)*Hidden
		for j := 0; j < Hidden; j++ {
			g[row+j] += t.dpre[j]
		}
	}
	t.opt.Step(t.p.Theta, g)
}

// ctxCheckEvery is the record stride between cancellation checks.
const ctxCheckEvery = 256

// Train fits p to the records of src. Every epoch streams the whole dataset
// once in file order with one optimizer step per record; the target is the
// stored score in pawns. Reported losses do not influence the run.
func Train(ctx context.Context, src dataset.Source, p *Params, opt *Adam, cfg TrainConfig) (TrainStats, error) {
	var stats TrainStats
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.LR > 0 {
		opt.SetLR(cfg.LR)
	}
	t := newTrainer(p, opt, cfg.Sparse)
	logger.Printf("Training %d epochs, lr=%g, sparse=%v", cfg.Epochs, opt.GetLR(), cfg.Sparse)

	for ep := 1; ep <= cfg.Epochs; ep++ {
		t0 := time.Now()
		rd, err := src.Rewind()
		if err != nil {
			return stats, fmt.Errorf("epoch %d: %w", ep, err)
		}

		totalLoss, totalN := 0.0, 0
		for rd.Next() {
			rec := rd.Record()
			totalLoss += t.step(rec.Features, float64(rec.CP)/100.0)
			totalN++
			stats.Steps++

			if totalN%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return stats, err
				}
			}
			if cfg.ReportEvery > 0 && totalN%cfg.ReportEvery == 0 {
				logger.Printf("epoch %d/%d  pos=%d  loss=%.6f", ep, cfg.Epochs, totalN, totalLoss/float64(totalN))
			}
		}
		if err := rd.Err(); err != nil {
			return stats, fmt.Errorf("epoch %d: %w", ep, err)
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		es := EpochStats{
			Epoch:    ep,
			Records:  totalN,
			Loss:     totalLoss / float64(max(1, totalN)),
			Duration: time.Since(t0),
		}
		stats.Epochs = append(stats.Epochs, es)
		logger.Printf("epoch %d  loss=%.6f  n=%d  time=%s", ep, es.Loss, es.Records, es.Duration)
	}
	return stats, nil
}
