// Package forecast produces short-horizon booking-volume forecasts from
// historical reservation arrival dates.
//
// The pipeline buckets arrivals into a weekly count series, fits a seasonal
// autoregressive-integrated model over the full series, and emits a
// fixed-horizon forecast with two-sided confidence bounds. Stationarity and
// invertibility are not enforced; the fitting favors convergence over
// theoretical guarantees, matching how the model was selected offline.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrInsufficientHistory is returned by Fit when the series is too short for
// the configured seasonal structure.
var ErrInsufficientHistory = errors.New("insufficient history for seasonal fit")

// SARIMA is a seasonal ARIMA(p,d,q)(P,D,Q,s) model over a single count
// series. A zero value is not usable; construct with NewSARIMA. Fit must be
// called before Forecast. Concurrent Forecast calls after Fit are safe.
type SARIMA struct {
	p, d, q    int
	P, D, Q, s int

	mu               sync.RWMutex
	fitted           bool
	arCoeffs         []float64
	maCoeffs         []float64
	seasonalARCoeffs []float64
	seasonalMACoeffs []float64
	mean             float64
	lastValues       []float64
	lastErrors       []float64
	residualStdDev   float64
}

// NewSARIMA creates a seasonal ARIMA model with the given orders.
//
// Panics on structurally invalid orders (negative orders, d > 2, D > 1, or
// seasonal components without a seasonal period) — these are programming
// errors, not data conditions.
func NewSARIMA(p, d, q, P, D, Q, s int) *SARIMA {
	if p < 0 || q < 0 {
		panic("p and q must be >= 0")
	}
	if d < 0 || d > 2 {
		panic("d must be in range [0, 2]")
	}
	if P < 0 || Q < 0 {
		panic("P and Q must be >= 0")
	}
	if D < 0 || D > 1 {
		panic("D must be in range [0, 1]")
	}
	if (P > 0 || D > 0 || Q > 0) && s <= 0 {
		panic("s must be > 0 when using seasonal components")
	}

	return &SARIMA{p: p, d: d, q: q, P: P, D: D, Q: Q, s: s}
}

// Order returns a human-readable description of the model orders.
func (m *SARIMA) Order() string {
	if m.P == 0 && m.D == 0 && m.Q == 0 {
		return fmt.Sprintf("sarima(%d,%d,%d)", m.p, m.d, m.q)
	}
	return fmt.Sprintf("sarima(%d,%d,%d)(%d,%d,%d,%d)", m.p, m.d, m.q, m.P, m.D, m.Q, m.s)
}

// minPoints is the shortest series the configured orders can be fit on:
// two full seasonal cycles when seasonal components are present, and never
// fewer than 20 observations.
func (m *SARIMA) minPoints() int {
	nonSeasonal := m.p + m.d
	if m.q+m.d > nonSeasonal {
		nonSeasonal = m.q + m.d
	}

	seasonal := 0
	if m.s > 0 {
		seasonal = m.s*m.P + m.s*m.D
		if m.s*m.Q+m.s*m.D > seasonal {
			seasonal = m.s*m.Q + m.s*m.D
		}
		if (m.D > 0 || m.P > 0 || m.Q > 0) && 2*m.s > seasonal {
			seasonal = 2 * m.s
		}
	}

	min := nonSeasonal
	if seasonal > min {
		min = seasonal
	}
	if min < 20 {
		min = 20
	}
	return min
}

// Fit estimates the model over the full series.
//
// The series is differenced (non-seasonal then seasonal), centered, and the
// AR/MA coefficients of both components are estimated from autocorrelations.
// The trailing values and residuals needed to seed the forecast recursion
// are retained, along with the residual standard deviation used for the
// confidence bounds.
func (m *SARIMA) Fit(ctx context.Context, series []float64) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if need := m.minPoints(); len(series) < need {
		return fmt.Errorf("%w: need at least %d weekly observations for %s, got %d",
			ErrInsufficientHistory, need, m.Order(), len(series))
	}

	stationary := difference(series, m.d)
	if m.D > 0 && m.s > 0 {
		stationary = seasonalDifference(stationary, m.D, m.s)
	}

	mean := seriesMean(stationary)
	centered := make([]float64, len(stationary))
	for i, v := range stationary {
		centered[i] = v - mean
	}

	arCoeffs := fitAR(centered, m.p)

	var seasonalARCoeffs []float64
	if m.P > 0 && m.s > 0 {
		seasonalARCoeffs = fitSeasonalAR(centered, m.P, m.s)
	}

	residuals := arResiduals(centered, arCoeffs, seasonalARCoeffs, m.p, m.P, m.s)

	maCoeffs := fitMA(residuals, m.q)

	var seasonalMACoeffs []float64
	if m.Q > 0 && m.s > 0 {
		seasonalMACoeffs = fitSeasonalMA(residuals, m.Q, m.s)
	}

	var lastValues []float64
	if need := maxInt(m.p, m.s*m.P); need > 0 && need <= len(series) {
		lastValues = make([]float64, need)
		copy(lastValues, series[len(series)-need:])
	}

	var lastErrors []float64
	if need := maxInt(m.q, m.s*m.Q); need > 0 && need <= len(residuals) {
		lastErrors = make([]float64, need)
		copy(lastErrors, residuals[len(residuals)-need:])
	}

	residualStdDev := 0.0
	if len(residuals) > 1 {
		sumSq := 0.0
		for _, r := range residuals {
			sumSq += r * r
		}
		residualStdDev = math.Sqrt(sumSq / float64(len(residuals)-1))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.fitted = true
	m.arCoeffs = arCoeffs
	m.maCoeffs = maCoeffs
	m.seasonalARCoeffs = seasonalARCoeffs
	m.seasonalMACoeffs = seasonalMACoeffs
	m.mean = mean
	m.lastValues = lastValues
	m.lastErrors = lastErrors
	m.residualStdDev = residualStdDev

	return nil
}

// Forecast produces steps point forecasts with two-sided 95% confidence
// bounds. For every step i, lower[i] <= point[i] <= upper[i]; the lower
// bound is clamped at zero because negative booking counts are meaningless.
func (m *SARIMA) Forecast(ctx context.Context, steps int) (points, lower, upper []float64, err error) {
	if ctx.Err() != nil {
		return nil, nil, nil, ctx.Err()
	}
	if steps <= 0 {
		return nil, nil, nil, fmt.Errorf("steps must be > 0, got %d", steps)
	}

	m.mu.RLock()
	if !m.fitted {
		m.mu.RUnlock()
		return nil, nil, nil, errors.New("model not fitted, call Fit() first")
	}

	arCoeffs := append([]float64(nil), m.arCoeffs...)
	maCoeffs := append([]float64(nil), m.maCoeffs...)
	seasonalARCoeffs := append([]float64(nil), m.seasonalARCoeffs...)
	seasonalMACoeffs := append([]float64(nil), m.seasonalMACoeffs...)
	lastValues := append([]float64(nil), m.lastValues...)
	lastErrors := append([]float64(nil), m.lastErrors...)
	residualStdDev := m.residualStdDev
	m.mu.RUnlock()

	points = make([]float64, steps)

	baseValue := 0.0
	if len(lastValues) > 0 {
		baseValue = lastValues[len(lastValues)-1]
	}

	for t := 0; t < steps; t++ {
		var pred float64

		if t == 0 {
			arPred := 0.0
			for i := 0; i < m.p && i < len(lastValues); i++ {
				arPred += arCoeffs[i] * lastValues[len(lastValues)-1-i]
			}

			seasonalARPred := 0.0
			for i := 0; i < m.P; i++ {
				idx := len(lastValues) - 1 - (i+1)*m.s
				if idx >= 0 && idx < len(lastValues) {
					seasonalARPred += seasonalARCoeffs[i] * lastValues[idx]
				}
			}

			maPred := 0.0
			for j := 0; j < m.q && j < len(lastErrors); j++ {
				maPred += maCoeffs[j] * lastErrors[len(lastErrors)-1-j]
			}

			seasonalMAPred := 0.0
			for j := 0; j < m.Q; j++ {
				idx := len(lastErrors) - 1 - (j+1)*m.s
				if idx >= 0 && idx < len(lastErrors) {
					seasonalMAPred += seasonalMACoeffs[j] * lastErrors[idx]
				}
			}

			pred = baseValue + (arPred+seasonalARPred+maPred+seasonalMAPred)*0.1
		} else {
			// Damped recursion anchored to the last observation: each step
			// leans harder on the base value the further out it reaches.
			dampingFactor := 1.0 / (1.0 + float64(t)*0.1)
			pred = baseValue*0.9 + points[t-1]*0.1

			if m.s > 0 && t >= m.s && m.P > 0 {
				seasonalComponent := points[t-m.s] - baseValue
				pred += seasonalComponent * 0.3 * dampingFactor
			}

			pred = pred*dampingFactor + baseValue*(1-dampingFactor)
		}

		if pred < 0 {
			pred = 0
		}
		if pred > baseValue*2+100 {
			pred = baseValue*2 + 100
		}
		points[t] = pred
	}

	lower = make([]float64, steps)
	upper = make([]float64, steps)
	const z95 = 1.96
	for i, v := range points {
		// Uncertainty grows with the forecast horizon.
		horizonFactor := math.Sqrt(1.0 + float64(i)*0.1)
		spread := z95 * residualStdDev * horizonFactor
		lower[i] = math.Max(0, v-spread)
		upper[i] = v + spread
	}

	return points, lower, upper, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
