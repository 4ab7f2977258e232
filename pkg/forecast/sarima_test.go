package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
)

// syntheticWeeklySeries builds n weeks of counts with annual seasonality and
// a mild upward trend, resembling a resampled reservation series.
func syntheticWeeklySeries(n int) []float64 {
	series := make([]float64, n)
	for i := range n {
		trend := 0.2 * float64(i)
		seasonal := 30 * math.Sin(2*math.Pi*float64(i)/52)
		series[i] = 200 + trend + seasonal
	}
	return series
}

func TestNewSARIMA_Panics(t *testing.T) {
	tests := []struct {
		name   string
		panics bool
		fn     func()
	}{
		{"valid weekly seasonal", false, func() { NewSARIMA(1, 1, 1, 1, 1, 1, 52) }},
		{"valid non-seasonal", false, func() { NewSARIMA(2, 1, 2, 0, 0, 0, 0) }},
		{"negative p", true, func() { NewSARIMA(-1, 1, 1, 0, 0, 0, 0) }},
		{"d too large", true, func() { NewSARIMA(1, 3, 1, 0, 0, 0, 0) }},
		{"D too large", true, func() { NewSARIMA(1, 1, 1, 1, 2, 1, 52) }},
		{"seasonal without period", true, func() { NewSARIMA(1, 1, 1, 1, 1, 1, 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if (r != nil) != tt.panics {
					t.Errorf("panic = %v, want panic = %v", r != nil, tt.panics)
				}
			}()
			tt.fn()
		})
	}
}

func TestSARIMA_Order(t *testing.T) {
	if got := NewSARIMA(1, 1, 1, 1, 1, 1, 52).Order(); got != "sarima(1,1,1)(1,1,1,52)" {
		t.Errorf("Order() = %q, want %q", got, "sarima(1,1,1)(1,1,1,52)")
	}
	if got := NewSARIMA(2, 1, 2, 0, 0, 0, 0).Order(); got != "sarima(2,1,2)" {
		t.Errorf("Order() = %q, want %q", got, "sarima(2,1,2)")
	}
}

func TestSARIMA_Fit_InsufficientHistory(t *testing.T) {
	model := NewSARIMA(1, 1, 1, 1, 1, 1, 52)

	err := model.Fit(context.Background(), syntheticWeeklySeries(60))
	if err == nil {
		t.Fatal("Fit() should fail on a series shorter than two seasonal cycles")
	}
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("Fit() error = %v, want ErrInsufficientHistory", err)
	}
}

func TestSARIMA_Forecast_BeforeFit(t *testing.T) {
	model := NewSARIMA(1, 1, 1, 1, 1, 1, 52)

	if _, _, _, err := model.Forecast(context.Background(), 12); err == nil {
		t.Error("Forecast() should fail before Fit()")
	}
}

func TestSARIMA_FitAndForecast(t *testing.T) {
	model := NewSARIMA(1, 1, 1, 1, 1, 1, 52)
	ctx := context.Background()
	series := syntheticWeeklySeries(156)

	if err := model.Fit(ctx, series); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	points, lower, upper, err := model.Forecast(ctx, 12)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if len(points) != 12 || len(lower) != 12 || len(upper) != 12 {
		t.Fatalf("Forecast lengths = %d/%d/%d, want 12/12/12", len(points), len(lower), len(upper))
	}

	last := series[len(series)-1]
	for i := range points {
		if math.IsNaN(points[i]) || math.IsInf(points[i], 0) {
			t.Fatalf("points[%d] is not finite: %v", i, points[i])
		}
		if points[i] < 0 {
			t.Errorf("points[%d] = %v, want >= 0", i, points[i])
		}
		if points[i] > last*2+100 {
			t.Errorf("points[%d] = %v exceeds clamp %v", i, points[i], last*2+100)
		}
		if lower[i] < 0 {
			t.Errorf("lower[%d] = %v, want >= 0", i, lower[i])
		}
		if lower[i] > points[i] {
			t.Errorf("lower[%d] = %v exceeds point %v", i, lower[i], points[i])
		}
		if upper[i] < points[i] {
			t.Errorf("upper[%d] = %v below point %v", i, upper[i], points[i])
		}
	}

	// Bounds widen with the horizon.
	firstSpread := upper[0] - lower[0]
	lastSpread := upper[11] - lower[11]
	if lastSpread < firstSpread {
		t.Errorf("interval spread shrank with horizon: first %v, last %v", firstSpread, lastSpread)
	}
}

func TestSARIMA_Forecast_InvalidSteps(t *testing.T) {
	model := NewSARIMA(1, 1, 1, 1, 1, 1, 52)
	ctx := context.Background()

	if err := model.Fit(ctx, syntheticWeeklySeries(156)); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if _, _, _, err := model.Forecast(ctx, 0); err == nil {
		t.Error("Forecast(0) should fail")
	}
	if _, _, _, err := model.Forecast(ctx, -3); err == nil {
		t.Error("Forecast(-3) should fail")
	}
}

func TestSARIMA_Forecast_Deterministic(t *testing.T) {
	model := NewSARIMA(1, 1, 1, 1, 1, 1, 52)
	ctx := context.Background()

	if err := model.Fit(ctx, syntheticWeeklySeries(156)); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	first, _, _, err := model.Forecast(ctx, 12)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	second, _, _, err := model.Forecast(ctx, 12)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("forecast is not deterministic at step %d", i)
		}
	}
}

func TestSARIMA_Fit_CanceledContext(t *testing.T) {
	model := NewSARIMA(1, 1, 1, 1, 1, 1, 52)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := model.Fit(ctx, syntheticWeeklySeries(156)); err == nil {
		t.Error("Fit() should fail with canceled context")
	}
}
