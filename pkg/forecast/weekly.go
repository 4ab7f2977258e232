package forecast

import (
	"encoding/binary"
	"math"
	"time"
)

// WeeklySeries is a contiguous, time-ordered count of reservations per
// calendar week. Each bucket is labeled by its week-end date (the Sunday
// closing the week), matching how the series was resampled at training time.
type WeeklySeries struct {
	// Start is the week-end date of the first bucket, at UTC midnight.
	Start time.Time

	// Counts holds one entry per week from Start, in 7-day steps.
	Counts []float64
}

// weekEnd maps a timestamp onto the Sunday that closes its calendar week,
// at UTC midnight. Timestamps already on a Sunday map to that same day.
func weekEnd(t time.Time) time.Time {
	day := t.UTC().Truncate(24 * time.Hour)
	offset := (7 - int(day.Weekday())) % 7
	return day.AddDate(0, 0, offset)
}

// BucketWeekly folds arrival timestamps into a weekly count series. Weeks
// with no arrivals between the first and last observation are present with a
// zero count, so the series has no gaps and downstream differencing sees a
// regular cadence. An empty input yields an empty series.
func BucketWeekly(arrivals []time.Time) WeeklySeries {
	if len(arrivals) == 0 {
		return WeeklySeries{}
	}

	counts := make(map[time.Time]float64)
	var first, last time.Time
	for i, ts := range arrivals {
		we := weekEnd(ts)
		counts[we]++
		if i == 0 || we.Before(first) {
			first = we
		}
		if i == 0 || we.After(last) {
			last = we
		}
	}

	n := int(last.Sub(first).Hours()/(24*7)) + 1
	series := WeeklySeries{Start: first, Counts: make([]float64, n)}
	for i := 0; i < n; i++ {
		series.Counts[i] = counts[first.AddDate(0, 0, 7*i)]
	}
	return series
}

// Len returns the number of weekly buckets.
func (s WeeklySeries) Len() int {
	return len(s.Counts)
}

// Date returns the week-end date of bucket i. Indexes past the end address
// forecast weeks following the observed series.
func (s WeeklySeries) Date(i int) time.Time {
	return s.Start.AddDate(0, 0, 7*i)
}

// Latest returns the most recent observed weekly count, or 0 for an empty
// series.
func (s WeeklySeries) Latest() float64 {
	if len(s.Counts) == 0 {
		return 0
	}
	return s.Counts[len(s.Counts)-1]
}

// fingerprint serializes the series into the byte form hashed for the
// forecast cache key.
func (s WeeklySeries) fingerprint() []byte {
	buf := make([]byte, 8+8*len(s.Counts))
	binary.LittleEndian.PutUint64(buf, uint64(s.Start.Unix()))
	for i, v := range s.Counts {
		binary.LittleEndian.PutUint64(buf[8+8*i:], math.Float64bits(v))
	}
	return buf
}
