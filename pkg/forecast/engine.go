package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/staycast/staycast/pkg/dataset"
)

// ErrUnavailable wraps any failure that prevents a forecast from being
// served: fitting failure, insufficient history, or an unreadable dataset.
// Nothing behind it is retried.
var ErrUnavailable = errors.New("forecast unavailable")

// WeeklyPoint is one charted week: the week-end date and its booking count.
type WeeklyPoint struct {
	Date     string `json:"date"`
	Bookings int    `json:"bookings"`
	Type     string `json:"type"`
}

// Interval is the two-sided confidence bound for one forecast week.
type Interval struct {
	Date  string  `json:"date"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Result is a complete forecast response: recent observed history for
// charting context, the fixed-horizon forecast, per-step confidence bounds,
// and the latest observed count as a current-trend scalar.
type Result struct {
	Observed     []WeeklyPoint `json:"observed"`
	Forecast     []WeeklyPoint `json:"forecast"`
	Intervals    []Interval    `json:"confidence_intervals"`
	CurrentTrend float64       `json:"current_trend"`
}

const (
	// Horizon is the fixed number of forecast weeks.
	Horizon = 12

	// ObservedTail is how many trailing observed weeks are returned.
	ObservedTail = 20

	// SeasonLength is the seasonal cycle of the weekly series: annual
	// seasonality over weekly buckets.
	SeasonLength = 52
)

type cacheEntry struct {
	result   Result
	cachedAt time.Time
}

// Metrics is the instrumentation the engine reports into. A nil Metrics
// disables recording.
type Metrics interface {
	RecordFit(seconds float64)
	RecordError(component, reason string)
}

// Engine serves booking-volume forecasts from a dataset source.
//
// Each request re-reads the dataset and re-derives the weekly series, but
// the expensive fit is skipped when the series is byte-identical to one
// forecast recently: results are cached under a murmur3 hash of the series
// and expire after CacheTTL. A new data point changes the hash, so callers
// always observe a forecast consistent with the current data. Concurrent
// fits are bounded by a semaphore so a burst of forecast requests cannot
// monopolize the process.
type Engine struct {
	source   dataset.Source
	season   int
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  Metrics

	fitSlots chan struct{}

	mu    sync.Mutex
	cache map[uint64]cacheEntry
}

// NewEngine creates a forecast engine over the given source.
//
// maxConcurrentFits bounds simultaneous model fits (values < 1 become 1).
// cacheTTL <= 0 disables caching. metrics may be nil.
func NewEngine(source dataset.Source, maxConcurrentFits int, cacheTTL time.Duration, logger *slog.Logger, metrics Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrentFits < 1 {
		maxConcurrentFits = 1
	}

	return &Engine{
		source:   source,
		season:   SeasonLength,
		cacheTTL: cacheTTL,
		logger:   logger,
		metrics:  metrics,
		fitSlots: make(chan struct{}, maxConcurrentFits),
		cache:    make(map[uint64]cacheEntry),
	}
}

// Run produces one complete forecast: collect arrivals, bucket them into the
// weekly series, fit the seasonal model, and shape the response. All failure
// modes surface as a single error wrapping ErrUnavailable.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	arrivals, err := e.source.Arrivals(ctx)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("dataset", "collect_failed")
		}
		return Result{}, fmt.Errorf("%w: collect arrivals: %w", ErrUnavailable, err)
	}
	if len(arrivals) == 0 {
		return Result{}, fmt.Errorf("%w: dataset is empty", ErrUnavailable)
	}

	series := BucketWeekly(arrivals)
	key := murmur3.Sum64(series.fingerprint())

	if result, ok := e.cached(key); ok {
		e.logger.Debug("forecast cache hit", "series_hash", key, "weeks", series.Len())
		return result, nil
	}

	select {
	case e.fitSlots <- struct{}{}:
		defer func() { <-e.fitSlots }()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	fitStart := time.Now()
	model := NewSARIMA(1, 1, 1, 1, 1, 1, e.season)
	if err := model.Fit(ctx, series.Counts); err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("forecast", "fit_failed")
		}
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if e.metrics != nil {
		e.metrics.RecordFit(time.Since(fitStart).Seconds())
	}

	points, lower, upper, err := model.Forecast(ctx, Horizon)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	result := shapeResult(series, points, lower, upper)
	e.store(key, result)

	e.logger.Info("forecast complete",
		"weeks_observed", series.Len(),
		"forecast_points", len(points),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

func shapeResult(series WeeklySeries, points, lower, upper []float64) Result {
	result := Result{CurrentTrend: series.Latest()}

	tail := ObservedTail
	if series.Len() < tail {
		tail = series.Len()
	}
	for i := series.Len() - tail; i < series.Len(); i++ {
		result.Observed = append(result.Observed, WeeklyPoint{
			Date:     series.Date(i).Format("2006-01-02"),
			Bookings: int(series.Counts[i]),
			Type:     "observed",
		})
	}

	for i, v := range points {
		date := series.Date(series.Len() + i).Format("2006-01-02")
		result.Forecast = append(result.Forecast, WeeklyPoint{
			Date:     date,
			Bookings: int(v),
			Type:     "forecast",
		})
		result.Intervals = append(result.Intervals, Interval{
			Date:  date,
			Lower: lower[i],
			Upper: upper[i],
		})
	}

	return result
}

func (e *Engine) cached(key uint64) (Result, bool) {
	if e.cacheTTL <= 0 {
		return Result{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.cache[key]
	if !ok || time.Since(entry.cachedAt) > e.cacheTTL {
		return Result{}, false
	}
	return entry.result, true
}

func (e *Engine) store(key uint64, result Result) {
	if e.cacheTTL <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for k, entry := range e.cache {
		if time.Since(entry.cachedAt) > e.cacheTTL {
			delete(e.cache, k)
		}
	}
	e.cache[key] = cacheEntry{result: result, cachedAt: time.Now()}
}
