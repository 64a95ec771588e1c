// tuner/io_json.go
package tuner

import (
	"encoding/json"
	"fmt"
	"os"

	"goose-nnue/features"
)

const paramsLayoutTag = "embedding_sum_v1"

type paramsJSON struct {
	Layout   string      `json:"layout"`
	Features int         `json:"features"`
	Hidden   int         `json:"hidden"`
	W1       [][]float64 `json:"w1"`
	B1       []float64   `json:"b1"`
	W2       []float64   `json:"w2"`
	B2       float64     `json:"b2"`
}

// SaveParamsJSON writes the float network, one W1 row per feature.
func SaveParamsJSON(path string, p *Params) error {
	payload := paramsJSON{
		Layout:   paramsLayoutTag,
		Features: features.NumFeatures,
		Hidden:   Hidden,
		W1:       make([][]float64, features.NumFeatures),
		B1:       p.B1,
		W2:       p.W2,
		B2:       p.B2[0],
	}
	for f := range payload.W1 {
		payload.W1[f] = p.Row(features.Feature(f))
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func LoadParamsJSON(path string) (*Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in paramsJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if in.Layout != paramsLayoutTag {
		return nil, fmt.Errorf("params layout %q, want %q", in.Layout, paramsLayoutTag)
	}
	if in.Features != features.NumFeatures || in.Hidden != Hidden {
		return nil, fmt.Errorf("params shape %dx%d, want %dx%d", in.Features, in.Hidden, features.NumFeatures, Hidden)
	}
	if len(in.W1) != features.NumFeatures || len(in.B1) != Hidden || len(in.W2) != Hidden {
		return nil, fmt.Errorf("params arrays do not match %dx%d", features.NumFeatures, Hidden)
	}
	p := NewParams()
	for f, row := range in.W1 {
		if len(row) != Hidden {
			return nil, fmt.Errorf("w1 row %d has %d values, want %d", f, len(row), Hidden)
		}
		copy(p.Row(features.Feature(f)), row)
	}
	copy(p.B1, in.B1)
	copy(p.W2, in.W2)
	p.B2[0] = in.B2
	return p, nil
}
