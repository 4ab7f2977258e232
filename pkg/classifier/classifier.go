// Package classifier runs the trained cancellation network over aligned
// feature vectors and turns probabilities into verdicts.
package classifier

import (
	"fmt"
	"math"

	"github.com/staycast/staycast/pkg/assets"
)

// Verdict is the binary cancellation decision.
type Verdict string

const (
	Canceled    Verdict = "Canceled"
	NotCanceled Verdict = "Not_Canceled"
)

// Threshold is the fixed decision boundary: probabilities strictly above it
// are classified as Canceled.
const Threshold = 0.5

// Classifier evaluates the frozen feedforward network. It holds no mutable
// state, so a single instance is safe for concurrent use and produces
// identical results whether invoked row-by-row or in a batch loop.
type Classifier struct {
	net assets.Network
}

// New wraps a validated network loaded from the asset bundle.
func New(net assets.Network) *Classifier {
	return &Classifier{net: net}
}

// Infer runs the aligned vector through the network and returns the
// cancellation probability in [0, 1].
func (c *Classifier) Infer(vec []float64) (float64, error) {
	if len(c.net.Layers) == 0 {
		return 0, fmt.Errorf("classifier has no layers")
	}
	if len(vec) != len(c.net.Layers[0].Weights[0]) {
		return 0, fmt.Errorf("input width %d does not match network input %d",
			len(vec), len(c.net.Layers[0].Weights[0]))
	}

	current := vec
	for i, layer := range c.net.Layers {
		next := make([]float64, len(layer.Weights))
		for j, row := range layer.Weights {
			sum := layer.Bias[j]
			for k, w := range row {
				sum += w * current[k]
			}
			next[j] = activate(layer.Activation, sum)
		}
		current = next
		if len(current) == 0 {
			return 0, fmt.Errorf("layer %d produced empty output", i)
		}
	}

	p := current[0]
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("network produced non-finite probability")
	}
	return p, nil
}

// Decide applies the fixed threshold: p > 0.5 is Canceled, anything at or
// below stays Not_Canceled.
func Decide(p float64) Verdict {
	if p > Threshold {
		return Canceled
	}
	return NotCanceled
}

// RiskScore converts a probability into the 0-100 score surfaced to callers,
// rounded to two decimal places.
func RiskScore(p float64) float64 {
	return math.Round(p*100*100) / 100
}

func activate(name string, x float64) float64 {
	switch name {
	case "relu":
		if x < 0 {
			return 0
		}
		return x
	case "sigmoid":
		return 1 / (1 + math.Exp(-x))
	case "tanh":
		return math.Tanh(x)
	default: // linear
		return x
	}
}
