package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPSource pulls arrival timestamps from any REST endpoint returning JSON,
// extracting them with a gjson path expression.
//
// Example configuration for a reservations API:
//
//	source := &HTTPSource{
//	    URL:             "https://api.example.com/reservations",
//	    TimestampPath:   "items.#.arrival_datetime",
//	    TimestampFormat: "rfc3339",
//	}
type HTTPSource struct {
	// URL is the endpoint to call (required).
	URL string

	// Headers are custom HTTP headers, e.g. for bearer tokens.
	Headers map[string]string

	// TimestampPath is the gjson path to the arrival timestamps (required).
	// Use "#" for arrays, e.g. "items.#.arrival_datetime".
	TimestampPath string

	// TimestampFormat specifies how to parse timestamps:
	//   "rfc3339"    - RFC3339 strings (default)
	//   "date"       - bare YYYY-MM-DD dates
	//   "unix"       - Unix seconds
	//   "unix_milli" - Unix milliseconds
	TimestampFormat string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

func (s *HTTPSource) Name() string { return "http" }

// Arrivals calls the endpoint and extracts one timestamp per reservation.
func (s *HTTPSource) Arrivals(ctx context.Context) ([]time.Time, error) {
	if s.URL == "" {
		return nil, errors.New("http source: URL is required")
	}
	if s.TimestampPath == "" {
		return nil, errors.New("http source: TimestampPath is required")
	}

	cli := s.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range s.Headers {
		req.Header.Set(key, value)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	result := gjson.GetBytes(body, s.TimestampPath)
	if !result.Exists() {
		return nil, fmt.Errorf("timestamp path %q not found in response", s.TimestampPath)
	}

	items := result.Array()
	arrivals := make([]time.Time, 0, len(items))
	for i, item := range items {
		ts, err := s.parseTimestamp(item)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp[%d]: %w", i, err)
		}
		arrivals = append(arrivals, ts)
	}

	return arrivals, nil
}

func (s *HTTPSource) parseTimestamp(value gjson.Result) (time.Time, error) {
	format := s.TimestampFormat
	if format == "" {
		format = "rfc3339"
	}

	switch format {
	case "rfc3339":
		ts, err := time.Parse(time.RFC3339, value.String())
		return ts.UTC(), err

	case "date":
		ts, err := time.Parse("2006-01-02", value.String())
		return ts.UTC(), err

	case "unix":
		return time.Unix(int64(value.Float()), 0).UTC(), nil

	case "unix_milli":
		return time.UnixMilli(int64(value.Float())).UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", format)
	}
}
