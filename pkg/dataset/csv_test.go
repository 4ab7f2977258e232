package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reservations.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestCSVSource_Arrivals_DatetimeColumn(t *testing.T) {
	path := writeCSV(t, "Booking_ID,arrival_datetime\n"+
		"INN00001,2017-07-02 00:00:00\n"+
		"INN00002,2017-08-15\n"+
		"INN00003,2017-09-01T12:30:00Z\n")

	source := &CSVSource{Path: path}
	arrivals, err := source.Arrivals(context.Background())
	if err != nil {
		t.Fatalf("Arrivals() error = %v", err)
	}

	if len(arrivals) != 3 {
		t.Fatalf("Arrivals() returned %d timestamps, want 3", len(arrivals))
	}
	if arrivals[0].Format("2006-01-02") != "2017-07-02" {
		t.Errorf("arrivals[0] = %v, want 2017-07-02", arrivals[0])
	}
}

func TestCSVSource_Arrivals_ComposedColumns(t *testing.T) {
	path := writeCSV(t, "arrival_year,arrival_month,arrival_date\n"+
		"2018,2,28\n"+
		"2018,2,29\n"+ // not a leap year, dropped
		"2018,13,1\n"+ // invalid month, dropped
		"2018,3,1\n")

	source := &CSVSource{Path: path}
	arrivals, err := source.Arrivals(context.Background())
	if err != nil {
		t.Fatalf("Arrivals() error = %v", err)
	}

	if len(arrivals) != 2 {
		t.Fatalf("Arrivals() returned %d timestamps, want 2 (invalid dates dropped)", len(arrivals))
	}
	if !arrivals[0].Equal(time.Date(2018, time.February, 28, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("arrivals[0] = %v, want 2018-02-28", arrivals[0])
	}
	if !arrivals[1].Equal(time.Date(2018, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("arrivals[1] = %v, want 2018-03-01", arrivals[1])
	}
}

func TestCSVSource_Arrivals_MissingColumns(t *testing.T) {
	path := writeCSV(t, "Booking_ID,lead_time\nINN00001,224\n")

	source := &CSVSource{Path: path}
	if _, err := source.Arrivals(context.Background()); err == nil {
		t.Error("Arrivals() should fail without arrival date columns")
	}
}

func TestCSVSource_Arrivals_EmptyPath(t *testing.T) {
	source := &CSVSource{}
	if _, err := source.Arrivals(context.Background()); err == nil {
		t.Error("Arrivals() should fail with empty path")
	}
}

func TestCSVSource_Arrivals_MissingFile(t *testing.T) {
	source := &CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")}
	if _, err := source.Arrivals(context.Background()); err == nil {
		t.Error("Arrivals() should fail when the file does not exist")
	}
}

func TestCSVSource_Arrivals_CanceledContext(t *testing.T) {
	path := writeCSV(t, "arrival_datetime\n2017-07-02\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &CSVSource{Path: path}
	if _, err := source.Arrivals(ctx); err == nil {
		t.Error("Arrivals() should fail with canceled context")
	}
}
