// Package features turns arbitrary reservation records into the fixed-order
// numeric vectors the trained classifier expects.
//
// The alignment step reproduces the training-time preprocessing exactly:
// same column presence, same column order, same label-to-code mapping, same
// standardization parameters. Partial or noisy input never changes the output
// shape; the policies below decide what fills the gaps.
package features

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/staycast/staycast/pkg/assets"
)

// Record is one reservation as supplied by a caller: an open mapping of
// field name to scalar value. Fields outside the feature schema are ignored.
type Record map[string]any

// MissingFieldPolicy decides what value stands in for schema columns the
// caller did not supply.
type MissingFieldPolicy int

// ZeroFill substitutes numeric zero for absent columns. For categorical
// columns zero is never a known label, so the unknown-category policy takes
// over — the same fill-then-encode order the training pipeline used.
const ZeroFill MissingFieldPolicy = iota

// UnknownCategoryPolicy decides how labels outside an encoder's frozen class
// set are encoded.
type UnknownCategoryPolicy int

// FirstClassFallback substitutes the first class in the encoder's frozen
// ordering. Encoding therefore never fails, at the documented cost of
// reinterpreting out-of-vocabulary input as an arbitrary known category.
const FirstClassFallback UnknownCategoryPolicy = iota

// Aligner converts records into schema-length, encoded, scaled vectors.
// It reads only immutable bundle state and is safe for concurrent use.
type Aligner struct {
	bundle  *assets.Bundle
	missing MissingFieldPolicy
	unknown UnknownCategoryPolicy
}

// NewAligner builds an aligner over the loaded asset bundle with the default
// policies (ZeroFill, FirstClassFallback).
func NewAligner(bundle *assets.Bundle) *Aligner {
	return &Aligner{
		bundle:  bundle,
		missing: ZeroFill,
		unknown: FirstClassFallback,
	}
}

// SchemaLen returns the fixed output vector length.
func (a *Aligner) SchemaLen() int {
	return len(a.bundle.FeatureColumns)
}

// Align produces the numeric vector for record.
//
// For every schema column, in schema order:
//  1. absent columns get the missing-field policy value,
//  2. categorical columns are encoded, substituting the fallback class for
//     anything outside the frozen vocabulary,
//  3. numeric columns are coerced from JSON scalars or numeric strings.
//
// The encoded vector is then standardized with the frozen scaler. The output
// length always equals the schema length; the only error path is a malformed
// value (non-scalar, or an unparseable numeric string).
func (a *Aligner) Align(record Record) ([]float64, error) {
	cols := a.bundle.FeatureColumns
	vec := make([]float64, len(cols))

	for i, col := range cols {
		raw, present := record[col]

		if enc, categorical := a.bundle.Encoders[col]; categorical {
			vec[i] = float64(a.encode(enc, raw, present))
			continue
		}

		if !present {
			vec[i] = 0 // ZeroFill
			continue
		}

		v, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		vec[i] = v
	}

	return a.bundle.Scaler.Transform(vec), nil
}

// encode maps a raw value onto an encoder code. Missing values fall through
// the zero-fill policy into the unknown-label path, as do non-string scalars
// and labels outside the vocabulary.
func (a *Aligner) encode(enc assets.Encoder, raw any, present bool) int {
	if !present {
		return enc.FallbackCode()
	}
	label, ok := raw.(string)
	if !ok {
		return enc.FallbackCode()
	}
	if code, known := enc.Code(label); known {
		return code
	}
	return enc.FallbackCode()
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("unparseable numeric value %q", v.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable numeric value %q", v)
		}
		return f, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("non-scalar value of type %T", raw)
	}
}
