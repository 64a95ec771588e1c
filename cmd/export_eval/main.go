package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"goose-nnue/export"
	"goose-nnue/tuner"
)

func main() {
	in := flag.String("in", "nnue.json", "Trained float network from cmd/train")
	out := flag.String("out", "nnue.nnue", "Quantized net for the engine")
	verify := flag.Bool("verify", true, "Read the written net back and compare")
	flag.Parse()
	log.SetFlags(log.LstdFlags)

	if err := run(*in, *out, *verify); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
}

func run(in, out string, verify bool) error {
	params, err := tuner.LoadParamsJSON(in)
	if err != nil {
		return fmt.Errorf("load %s: %w", in, err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}

	net, err := export.ExportFile(out, params)
	if err != nil {
		return err
	}
	log.Printf("w1: [%d %d]  b1: [%d]  w2: [%d]", len(net.W1)/net.Hidden, net.Hidden, len(net.B1), len(net.W2))
	log.Printf("%s", net.Summary())

	if verify {
		f, err := os.Open(out)
		if err != nil {
			return err
		}
		defer f.Close()
		got, err := export.ReadNet(f)
		if err != nil {
			return fmt.Errorf("verify %s: %w", out, err)
		}
		if err := sameNet(net, got); err != nil {
			return fmt.Errorf("verify %s: %w", out, err)
		}
	}
	log.Printf("Exported %s (%d bytes)", out, export.FileSize(net.Hidden))
	return nil
}

func sameNet(want, got *export.Net) error {
	if want.Hidden != got.Hidden {
		return fmt.Errorf("hidden %d, wrote %d", got.Hidden, want.Hidden)
	}
	for i := range want.W1 {
		if want.W1[i] != got.W1[i] {
			return fmt.Errorf("w1[%d] = %d, wrote %d", i, got.W1[i], want.W1[i])
		}
	}
	for i := range want.B1 {
		if want.B1[i] != got.B1[i] {
			return fmt.Errorf("b1[%d] = %d, wrote %d", i, got.B1[i], want.B1[i])
		}
	}
	for i := range want.W2 {
		if want.W2[i] != got.W2[i] {
			return fmt.Errorf("w2[%d] = %d, wrote %d", i, got.W2[i], want.W2[i])
		}
	}
	if want.B2 != got.B2 {
		return fmt.Errorf("b2 = %d, wrote %d", got.B2, want.B2)
	}
	return nil
}
