// Package assets loads the trained artifact bundle the serving pipeline
// depends on: the classifier network, the feature scaler, the categorical
// encoders, and the ordered feature-column list.
//
// All four artifacts are exported at training time as JSON files in a single
// directory:
//   - feature_columns.json — ordered column names expected by the classifier
//   - encoders.json        — per categorical column, the frozen class ordering
//   - scaler.json          — per-column mean/scale of the standardization step
//   - model.json           — feedforward network weights, biases, activations
//
// A Bundle is loaded once at startup and never mutated afterwards, so it is
// safe for unsynchronized concurrent reads from request handlers.
package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Encoder holds the frozen class ordering for one categorical column.
// The integer code of a label is its index in Classes; Classes[0] doubles
// as the fallback label for out-of-vocabulary input.
type Encoder struct {
	Classes []string `json:"classes"`
}

// Code returns the integer code for label and whether the label is known.
func (e Encoder) Code(label string) (int, bool) {
	for i, c := range e.Classes {
		if c == label {
			return i, true
		}
	}
	return 0, false
}

// FallbackCode returns the code substituted for unknown labels: the first
// class in the frozen ordering.
func (e Encoder) FallbackCode() int {
	return 0
}

// Scaler holds the frozen affine standardization parameters, one pair per
// feature column in schema order.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Transform applies (v - mean) / scale per column. The input length must
// equal the scaler length; Load guarantees this matches the schema.
func (s Scaler) Transform(vec []float64) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out
}

// Layer is one dense layer of the classifier network.
// Weights is [outputs][inputs]; Bias has one entry per output.
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// Network is the serialized feedforward classifier.
type Network struct {
	Layers []Layer `json:"layers"`
}

// Bundle is the immutable set of trained artifacts used for serving.
type Bundle struct {
	FeatureColumns []string
	Encoders       map[string]Encoder
	Scaler         Scaler
	Model          Network
}

// Load reads and validates the artifact bundle from dir.
//
// Validation enforces the cross-shape invariants the pipeline relies on:
// scaler parameter lengths equal the schema length, every encoder column
// appears in the schema with at least one class, the network's first layer
// accepts a schema-length vector and its last layer emits a single
// probability.
func Load(dir string) (*Bundle, error) {
	b := &Bundle{}

	if err := readJSON(filepath.Join(dir, "feature_columns.json"), &b.FeatureColumns); err != nil {
		return nil, fmt.Errorf("load feature columns: %w", err)
	}
	if len(b.FeatureColumns) == 0 {
		return nil, fmt.Errorf("feature_columns.json: schema is empty")
	}

	var rawEncoders map[string][]string
	if err := readJSON(filepath.Join(dir, "encoders.json"), &rawEncoders); err != nil {
		return nil, fmt.Errorf("load encoders: %w", err)
	}
	b.Encoders = make(map[string]Encoder, len(rawEncoders))
	for col, classes := range rawEncoders {
		if len(classes) == 0 {
			return nil, fmt.Errorf("encoders.json: column %q has no classes", col)
		}
		if !contains(b.FeatureColumns, col) {
			return nil, fmt.Errorf("encoders.json: column %q not in feature schema", col)
		}
		b.Encoders[col] = Encoder{Classes: classes}
	}

	if err := readJSON(filepath.Join(dir, "scaler.json"), &b.Scaler); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	if len(b.Scaler.Mean) != len(b.FeatureColumns) || len(b.Scaler.Scale) != len(b.FeatureColumns) {
		return nil, fmt.Errorf("scaler.json: mean/scale lengths (%d/%d) do not match schema length %d",
			len(b.Scaler.Mean), len(b.Scaler.Scale), len(b.FeatureColumns))
	}

	if err := readJSON(filepath.Join(dir, "model.json"), &b.Model); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if err := validateNetwork(b.Model, len(b.FeatureColumns)); err != nil {
		return nil, fmt.Errorf("model.json: %w", err)
	}

	return b, nil
}

func validateNetwork(n Network, inputWidth int) error {
	if len(n.Layers) == 0 {
		return fmt.Errorf("network has no layers")
	}

	width := inputWidth
	for i, layer := range n.Layers {
		if len(layer.Weights) == 0 {
			return fmt.Errorf("layer %d has no weights", i)
		}
		if len(layer.Weights) != len(layer.Bias) {
			return fmt.Errorf("layer %d: %d weight rows but %d biases", i, len(layer.Weights), len(layer.Bias))
		}
		for j, row := range layer.Weights {
			if len(row) != width {
				return fmt.Errorf("layer %d row %d: expected %d inputs, got %d", i, j, width, len(row))
			}
		}
		switch layer.Activation {
		case "relu", "sigmoid", "tanh", "linear":
		default:
			return fmt.Errorf("layer %d: unsupported activation %q", i, layer.Activation)
		}
		width = len(layer.Weights)
	}

	if width != 1 {
		return fmt.Errorf("final layer emits %d outputs, expected 1", width)
	}
	if last := n.Layers[len(n.Layers)-1]; last.Activation != "sigmoid" {
		return fmt.Errorf("final layer activation %q, expected sigmoid", last.Activation)
	}

	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
