// tuner/consts.go
package tuner

import "goose-nnue/features"

const (
	Hidden        = 256
	ActivationMax = 127.0

	DefaultLR     = 1e-3
	DefaultEpochs = 4
)

// Layout of Params.Theta.
const (
	offW1     = 0
	offB1     = offW1 + features.NumFeatures*Hidden
	offW2     = offB1 + Hidden
	offB2     = offW2 + Hidden
	NumParams = offB2 + 1
)
