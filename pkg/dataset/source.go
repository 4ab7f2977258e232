// Package dataset provides sources of historical reservation arrival dates
// for the booking-volume forecast.
//
// Each source pulls raw arrival timestamps from an external system (a local
// CSV export or a JSON HTTP endpoint), leaving all bucketing and model
// fitting to the forecast package. Sources are intentionally lightweight and
// re-read on every call; the forecast layer decides what to cache.
package dataset

import (
	"context"
	"time"
)

// Source yields the full set of historical reservation arrival timestamps.
//
// Arrivals is synchronous and should respect context cancellation. The
// returned slice need not be sorted; bucketing does not depend on order.
type Source interface {
	Arrivals(ctx context.Context) ([]time.Time, error)

	// Name returns a short, unique identifier for the source, e.g. "csv".
	Name() string
}
