package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"goose-nnue/dataset"
	"goose-nnue/features"
)

func main() {
	input := flag.String("in", "", "Annotated corpus (.jsonl or .jsonl.zst)")
	output := flag.String("out", "data.bin", "Output dataset file")
	maxRows := flag.Int("max", 500_000, "Maximum records to write (0 = all)")
	board := flag.String("board", "goose", `Board backend: "goose" or "dragontooth"`)
	threads := flag.Int("threads", runtime.NumCPU(), "Encoding workers")
	progress := flag.Int("progress", 100_000, "Lines between progress reports (0 = quiet)")

	flag.Parse()
	log.SetFlags(log.LstdFlags)

	if *input == "" {
		fmt.Println("Usage: convert -in <lichess_db_eval.jsonl[.zst]> -out <data.bin>")
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	backend, err := features.ParseBackend(*board)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Ensure output directory exists
	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := dataset.DefaultIngestConfig()
	cfg.Backend = backend
	cfg.MaxRecords = *maxRows
	cfg.Workers = *threads
	cfg.ProgressEvery = *progress

	if err := convert(ctx, *input, *output, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Conversion failed: %v\n", err)
		os.Exit(1)
	}
}

func convert(ctx context.Context, input, output string, cfg dataset.IngestConfig) error {
	in, err := dataset.OpenCorpus(input)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := dataset.Create(output)
	if err != nil {
		return err
	}
	defer w.Abort()

	log.Printf("Converting %s -> %s (board=%s, max=%d)", input, output, cfg.Backend, cfg.MaxRecords)
	stats, err := dataset.Ingest(ctx, in, w, cfg)
	if err != nil {
		return err
	}
	if err := w.Commit(); err != nil {
		return err
	}
	log.Printf("Done: %s", stats)
	log.Printf("Saved %d positions to %s (%.2f MB)", w.Count(), output, float64(w.Bytes())/(1024*1024))
	return nil
}
