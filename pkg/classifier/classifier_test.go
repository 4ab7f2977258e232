package classifier

import (
	"math"
	"testing"

	"github.com/staycast/staycast/pkg/assets"
)

// tinyNetwork is a hand-computable 2-input network: one linear hidden layer
// followed by a sigmoid output.
func tinyNetwork() assets.Network {
	return assets.Network{
		Layers: []assets.Layer{
			{
				Weights:    [][]float64{{1.0, 0.0}, {0.0, 1.0}},
				Bias:       []float64{0.0, 0.0},
				Activation: "linear",
			},
			{
				Weights:    [][]float64{{1.0, 1.0}},
				Bias:       []float64{0.0},
				Activation: "sigmoid",
			},
		},
	}
}

func TestClassifier_Infer_HandComputed(t *testing.T) {
	clf := New(tinyNetwork())

	tests := []struct {
		name string
		vec  []float64
		want float64
	}{
		{"zero input", []float64{0, 0}, 0.5},
		{"positive input", []float64{1, 1}, 1 / (1 + math.Exp(-2))},
		{"negative input", []float64{-1, -1}, 1 / (1 + math.Exp(2))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clf.Infer(tt.vec)
			if err != nil {
				t.Fatalf("Infer() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Infer() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifier_Infer_WidthMismatch(t *testing.T) {
	clf := New(tinyNetwork())

	if _, err := clf.Infer([]float64{1, 2, 3}); err == nil {
		t.Error("Infer() should reject a vector wider than the network input")
	}
}

func TestClassifier_Infer_Deterministic(t *testing.T) {
	clf := New(tinyNetwork())
	vec := []float64{0.3, -1.7}

	first, err := clf.Infer(vec)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	for range 10 {
		got, err := clf.Infer(vec)
		if err != nil {
			t.Fatalf("Infer() error = %v", err)
		}
		if got != first {
			t.Fatal("inference is not deterministic")
		}
	}
}

func TestDecide_Threshold(t *testing.T) {
	tests := []struct {
		p    float64
		want Verdict
	}{
		{0.0, NotCanceled},
		{0.4999999, NotCanceled},
		{0.5, NotCanceled}, // boundary stays Not_Canceled
		{0.5000001, Canceled},
		{1.0, Canceled},
	}

	for _, tt := range tests {
		if got := Decide(tt.p); got != tt.want {
			t.Errorf("Decide(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestRiskScore(t *testing.T) {
	tests := []struct {
		p    float64
		want float64
	}{
		{0.0, 0.0},
		{0.5, 50.0},
		{0.87654, 87.65},
		{0.25, 25.0},
		{1.0, 100.0},
	}

	for _, tt := range tests {
		if got := RiskScore(tt.p); got != tt.want {
			t.Errorf("RiskScore(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
