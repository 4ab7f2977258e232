package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// CSVSource reads arrival dates from a local CSV export of the reservation
// dataset.
//
// The file must carry either an arrival_datetime column, or the raw
// arrival_year / arrival_month / arrival_date triple from which the cleaned
// dataset derives it. Rows whose date cannot be parsed (e.g. February 30th
// in the raw data) are dropped, mirroring the offline cleaning step.
type CSVSource struct {
	// Path is the CSV file location (required).
	Path string
}

func (s *CSVSource) Name() string { return "csv" }

// Arrivals parses the file and returns one timestamp per valid reservation
// row.
func (s *CSVSource) Arrivals(ctx context.Context) ([]time.Time, error) {
	if s.Path == "" {
		return nil, errors.New("csv source: path is required")
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}

	dtCol, hasDatetime := idx["arrival_datetime"]
	yearCol, hasYear := idx["arrival_year"]
	monthCol, hasMonth := idx["arrival_month"]
	dayCol, hasDay := idx["arrival_date"]

	if !hasDatetime && !(hasYear && hasMonth && hasDay) {
		return nil, errors.New("dataset has neither arrival_datetime nor arrival_year/arrival_month/arrival_date columns")
	}

	var arrivals []time.Time
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row: %w", err)
		}

		var ts time.Time
		var ok bool
		if hasDatetime && dtCol < len(row) {
			ts, ok = parseArrivalDatetime(row[dtCol])
		}
		if !ok && hasYear && hasMonth && hasDay {
			ts, ok = composeArrivalDate(row, yearCol, monthCol, dayCol)
		}
		if !ok {
			continue // invalid date, dropped like the cleaning step does
		}
		arrivals = append(arrivals, ts)
	}

	return arrivals, nil
}

func parseArrivalDatetime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func composeArrivalDate(row []string, yearCol, monthCol, dayCol int) (time.Time, bool) {
	if yearCol >= len(row) || monthCol >= len(row) || dayCol >= len(row) {
		return time.Time{}, false
	}

	year, err1 := strconv.Atoi(row[yearCol])
	month, err2 := strconv.Atoi(row[monthCol])
	day, err3 := strconv.Atoi(row[dayCol])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	ts := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (Feb 30 becomes Mar 1); the
	// cleaning step drops such rows instead, so reject anything that moved.
	if ts.Day() != day || ts.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return ts, true
}
