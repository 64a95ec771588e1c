package tuner

import (
	"math"
	"math/rand"

	"golang.org/x/exp/constraints"

	"goose-nnue/features"
)

// Params holds the float network. W1, B1, W2 and B2 are views into Theta so
// the optimizer can address every weight by a single index.
type Params struct {
	Theta []float64
	W1    []float64 // row f starts at f*Hidden
	B1    []float64
	W2    []float64
	B2    []float64 // length 1
}

// NewParams returns an all-zero network.
func NewParams() *Params {
	theta := make([]float64, NumParams)
	return &Params{
		Theta: theta,
		W1:    theta[offW1:offB1:offB1],
		B1:    theta[offB1:offW2:offW2],
		W2:    theta[offW2:offB2:offB2],
		B2:    theta[offB2:NumParams:NumParams],
	}
}

// Init draws W1 from N(0,1), W2 and B2 from U(-1/√Hidden, 1/√Hidden) and
// zeroes B1. The same seed always yields the same network.
func (p *Params) Init(seed int64) {
	rnd := rand.New(rand.NewSource(seed))
	for i := range p.W1 {
		p.W1[i] = rnd.NormFloat64()
	}
	for i := range p.B1 {
		p.B1[i] = 0
	}
	bound := 1 / math.Sqrt(Hidden)
	initUniform(rnd, p.W2, bound)
	initUniform(rnd, p.B2, bound)
}

func initUniform(rnd *rand.Rand, data []float64, max float64) {
	for i := range data {
		data[i] = (rnd.Float64() - 0.5) * 2 * max
	}
}

// Row returns the embedding of feature f.
func (p *Params) Row(f features.Feature) []float64 {
	off := int(f) * Hidden
	return p.W1[off : off+Hidden : off+Hidden]
}

func (p *Params) Clone() *Params {
	q := NewParams()
	copy(q.Theta, p.Theta)
	return q
}

func clamp[T constraints.Float | constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Forward evaluates the network in pawns.
func (p *Params) Forward(feats features.Set) float64 {
	var pre, h [Hidden]float64
	return p.forward(feats, pre[:], h[:])
}

// forward fills pre with B1 + Σ W1[f] and h with its clamp to [0, 127].
func (p *Params) forward(feats features.Set, pre, h []float64) float64 {
	copy(pre, p.B1)
	for _, f := range feats {
		row := p.Row(f)
		for j := range pre {
			pre[j] += row[j]
		}
	}
	y := p.B2[0]
	for j := range pre {
		h[j] = clamp(pre[j], 0, ActivationMax)
		y += h[j] * p.W2[j]
	}
	return y
}
