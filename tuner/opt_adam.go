package tuner

import "math"

type Adam struct {
	M, V  []float64 // First and second moment estimates
	LR    float64
	Beta1 float64 // Typically 0.9
	Beta2 float64 // Typically 0.999
	Eps   float64
	T     int // Timestep (for bias correction)

	// SkipZero makes Step leave coordinates with an exactly zero gradient
	// untouched, moments included.
	SkipZero bool

	bc1, bc2 float64
}

func NewAdam(numParams int, lr float64) *Adam {
	return &Adam{
		M:        make([]float64, numParams),
		V:        make([]float64, numParams),
		LR:       lr,
		Beta1:    0.9,
		Beta2:    0.999,
		Eps:      1e-8,
		T:        0,
	}
}

// SetLR updates the base learning rate.
func (opt *Adam) SetLR(lr float64) {
	opt.LR = lr
}

// GetLR returns the current base learning rate.
func (opt *Adam) GetLR() float64 {
	return opt.LR
}

// Tick starts a new timestep. Every Update until the next Tick shares its
// bias correction.
func (opt *Adam) Tick() {
	opt.T++
	opt.bc1 = 1.0 - math.Pow(opt.Beta1, float64(opt.T))
	opt.bc2 = 1.0 - math.Pow(opt.Beta2, float64(opt.T))
}

// Update applies gradient g to params[i].
func (opt *Adam) Update(params []float64, i int, g float64) {
	if g == 0 && opt.SkipZero {
		return
	}

	// Update biased moments
	opt.M[i] = opt.Beta1*opt.M[i] + (1-opt.Beta1)*g
	opt.V[i] = opt.Beta2*opt.V[i] + (1-opt.Beta2)*g*g

	// Bias-corrected estimates
	mHat := opt.M[i] / opt.bc1
	vHat := opt.V[i] / opt.bc2

	params[i] -= opt.LR * mHat / (math.Sqrt(vHat) + opt.Eps)
}

// Step runs one full timestep over a dense gradient.
func (opt *Adam) Step(params []float64, grads []float64) {
	opt.Tick()
	for i := range params {
		opt.Update(params, i, grads[i])
	}
}
