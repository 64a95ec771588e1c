// cmd/train/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"goose-nnue/dataset"
	"goose-nnue/tuner"
)

var (
	dataPath = flag.String("data", "data.bin", "Dataset produced by convert")
	outJSON  = flag.String("out", "nnue.json", "Where to write the trained float network")
	epochs   = flag.Int("epochs", tuner.DefaultEpochs, "Training epochs")
	lr       = flag.Float64("lr", tuner.DefaultLR, "Adam learning rate")
	seed     = flag.Int64("seed", 1, "Weight initialisation seed")
	report   = flag.Int("report", 1000, "Records between running-loss reports")
	sparse   = flag.Bool("sparse", false, "Only step weights with a non-zero gradient (faster, lazy Adam)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags)

	if *dataPath == "" {
		fmt.Println("Usage:")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Training failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	data, err := dataset.Open(*dataPath)
	if err != nil {
		return err
	}
	defer data.Close()
	log.Printf("Dataset: %s (%.2f MB)", *dataPath, float64(data.Size())/(1024*1024))

	params := tuner.NewParams()
	params.Init(*seed)
	opt := tuner.NewAdam(tuner.NumParams, *lr)

	cfg := tuner.DefaultTrainConfig()
	cfg.Epochs = *epochs
	cfg.LR = *lr
	cfg.ReportEvery = *report
	cfg.Sparse = *sparse

	stats, err := tuner.Train(ctx, data, params, opt, cfg)
	if err != nil {
		return err
	}
	log.Printf("Trained %d steps, final loss %.4f", stats.Steps, stats.FinalLoss())

	if err := os.MkdirAll(filepath.Dir(*outJSON), 0o755); err != nil && !os.IsExist(err) {
		return err
	}
	if err := tuner.SaveParamsJSON(*outJSON, params); err != nil {
		return err
	}
	log.Printf("Saved network to %s", *outJSON)
	return nil
}
