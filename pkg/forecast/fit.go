package forecast

import (
	"errors"
	"math"
)

// difference applies d-order differencing to make a series stationary.
func difference(series []float64, d int) []float64 {
	if d == 0 || len(series) == 0 {
		result := make([]float64, len(series))
		copy(result, series)
		return result
	}

	result := make([]float64, len(series)-1)
	for i := 0; i < len(series)-1; i++ {
		result[i] = series[i+1] - series[i]
	}

	if d > 1 {
		return difference(result, d-1)
	}
	return result
}

// seasonalDifference applies D-order seasonal differencing at lag s.
func seasonalDifference(series []float64, D int, s int) []float64 {
	if D == 0 || s <= 0 || len(series) <= s {
		result := make([]float64, len(series))
		copy(result, series)
		return result
	}

	result := make([]float64, len(series)-s)
	for i := 0; i < len(result); i++ {
		result[i] = series[i+s] - series[i]
	}

	if D > 1 {
		return seasonalDifference(result, D-1, s)
	}
	return result
}

func seriesMean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func seriesVariance(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	mean := seriesMean(series)
	var sumSq float64
	for _, v := range series {
		diff := v - mean
		sumSq += diff * diff
	}
	return sumSq / float64(len(series))
}

// autocorr computes the autocorrelation of a series at the given lag.
func autocorr(series []float64, lag int) float64 {
	if lag < 0 || lag >= len(series) {
		return 0
	}

	n := len(series)
	mean := seriesMean(series)

	var c0, ck float64
	for i := range n {
		c0 += (series[i] - mean) * (series[i] - mean)
	}
	for i := 0; i < n-lag; i++ {
		ck += (series[i] - mean) * (series[i+lag] - mean)
	}

	if c0 == 0 {
		return 0
	}
	return ck / c0
}

// levinsonDurbin solves the Yule-Walker equations for AR coefficients.
func levinsonDurbin(acf []float64, p int) ([]float64, error) {
	if p == 0 {
		return []float64{}, nil
	}

	phi := make([][]float64, p+1)
	for i := range phi {
		phi[i] = make([]float64, p+1)
	}

	v := acf[0]

	for k := 1; k <= p; k++ {
		num := acf[k]
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * acf[k-j]
		}

		if v == 0 {
			return nil, errors.New("numerical instability in Levinson-Durbin")
		}

		phi[k][k] = num / v

		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}

		v = v * (1 - phi[k][k]*phi[k][k])
		if v < 0 {
			return nil, errors.New("negative variance in Levinson-Durbin")
		}
	}

	coeffs := make([]float64, p)
	for i := range p {
		coeffs[i] = phi[p][i+1]
	}
	return coeffs, nil
}

// fitAR estimates non-seasonal AR coefficients via Yule-Walker.
// Falls back to a mild default coefficient when the equations are unstable;
// the model favors convergence over theoretical guarantees.
func fitAR(centered []float64, p int) []float64 {
	if p == 0 {
		return []float64{}
	}

	if seriesVariance(centered) < 1e-10 {
		return make([]float64, p)
	}

	acf := make([]float64, p+1)
	for k := 0; k <= p; k++ {
		acf[k] = autocorr(centered, k)
	}

	coeffs, err := levinsonDurbin(acf, p)
	if err != nil {
		coeffs = make([]float64, p)
		coeffs[0] = 0.5
	}
	return coeffs
}

// fitSeasonalAR estimates seasonal AR coefficients from autocorrelations at
// multiples of the seasonal lag.
func fitSeasonalAR(centered []float64, P int, s int) []float64 {
	if P == 0 || s <= 0 {
		return []float64{}
	}

	seasonalACF := make([]float64, P+1)
	for k := 0; k <= P; k++ {
		seasonalACF[k] = autocorr(centered, k*s)
	}

	coeffs, err := levinsonDurbin(seasonalACF, P)
	if err != nil {
		coeffs = make([]float64, P)
		coeffs[0] = 0.3
	}
	return coeffs
}

// fitMA estimates MA coefficients from residual autocorrelations, clamped to
// keep the recursion stable. A full innovations algorithm would be tighter;
// residual autocorrelation is a workable approximation for count series.
func fitMA(residuals []float64, q int) []float64 {
	if q == 0 || len(residuals) == 0 {
		return []float64{}
	}

	coeffs := make([]float64, q)
	for i := 0; i < q && i < len(residuals); i++ {
		coeffs[i] = autocorr(residuals, i+1)
	}

	for i := range coeffs {
		if math.Abs(coeffs[i]) > 1 {
			coeffs[i] = coeffs[i] / math.Abs(coeffs[i]) * 0.9
		}
	}
	return coeffs
}

// fitSeasonalMA estimates seasonal MA coefficients at multiples of lag s.
func fitSeasonalMA(residuals []float64, Q int, s int) []float64 {
	if Q == 0 || s <= 0 || len(residuals) == 0 {
		return []float64{}
	}

	coeffs := make([]float64, Q)
	for i := 0; i < Q && (i+1)*s < len(residuals); i++ {
		coeffs[i] = autocorr(residuals, (i+1)*s)
		if math.Abs(coeffs[i]) > 1 {
			coeffs[i] = coeffs[i] / math.Abs(coeffs[i]) * 0.9
		}
	}
	return coeffs
}

// arResiduals computes one-step prediction errors of the combined seasonal
// and non-seasonal AR components, used for MA fitting and for the residual
// spread behind the confidence intervals.
func arResiduals(centered []float64, arCoeffs, seasonalARCoeffs []float64, p, P, s int) []float64 {
	startIdx := p
	if P*s > startIdx {
		startIdx = P * s
	}
	if len(centered) <= startIdx {
		return []float64{}
	}

	residuals := make([]float64, len(centered)-startIdx)

	for t := startIdx; t < len(centered); t++ {
		var arPred float64
		for i := 0; i < p && i < len(arCoeffs); i++ {
			arPred += arCoeffs[i] * centered[t-1-i]
		}

		var seasonalARPred float64
		for i := 0; i < P && i < len(seasonalARCoeffs); i++ {
			idx := t - (i+1)*s
			if idx >= 0 {
				seasonalARPred += seasonalARCoeffs[i] * centered[idx]
			}
		}

		residuals[t-startIdx] = centered[t] - arPred - seasonalARPred
	}

	return residuals
}
