// tuner/types.go
package tuner

import (
	"log"
	"time"
)

type TrainConfig struct {
	Epochs      int
	LR          float64 // overrides the optimizer's rate when > 0
	ReportEvery int     // records between running-loss reports, 0 = epoch summary only

	// Sparse skips every coordinate whose gradient is exactly zero, moments
	// included, so only the active embedding rows move. Much faster, but
	// inactive weights no longer coast on their momentum. The default steps
	// every coordinate each record.
	Sparse bool

	Logger *log.Logger
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:      DefaultEpochs,
		LR:          DefaultLR,
		ReportEvery: 1000,
	}
}

type EpochStats struct {
	Epoch    int
	Records  int
	Loss     float64 // mean squared error in pawns²
	Duration time.Duration
}

type TrainStats struct {
	Epochs []EpochStats
	Steps  int
}

// FinalLoss is the mean loss of the last epoch.
func (s TrainStats) FinalLoss() float64 {
	if len(s.Epochs) == 0 {
		return 0
	}
	return s.Epochs[len(s.Epochs)-1].Loss
}
