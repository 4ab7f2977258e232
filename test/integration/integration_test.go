//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/staycast/staycast/cmd/server/router"
	"github.com/staycast/staycast/pkg/assets"
	"github.com/staycast/staycast/pkg/classifier"
	"github.com/staycast/staycast/pkg/dataset"
	"github.com/staycast/staycast/pkg/features"
	"github.com/staycast/staycast/pkg/forecast"
	"github.com/staycast/staycast/pkg/ledger"
	"github.com/staycast/staycast/pkg/predict"
)

// writeAssetFixtures exports a small but fully consistent model bundle:
// two numeric features, one categorical, a single sigmoid layer.
func writeAssetFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	fixtures := map[string]any{
		"feature_columns.json": []string{"lead_time", "avg_price_per_room", "type_of_meal_plan"},
		"encoders.json": map[string][]string{
			"type_of_meal_plan": {"Meal Plan 1", "Meal Plan 2", "Not Selected"},
		},
		"scaler.json": map[string][]float64{
			"mean":  {85.0, 100.0, 1.0},
			"scale": {50.0, 25.0, 0.5},
		},
		"model.json": map[string]any{
			"layers": []map[string]any{
				{
					"weights":    [][]float64{{0.8, -0.2, 0.1}},
					"bias":       []float64{0.05},
					"activation": "sigmoid",
				},
			},
		},
	}

	for name, v := range fixtures {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// writeReservationCSV exports ~130 weeks of arrival history.
func writeReservationCSV(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("Booking_ID,arrival_datetime\n")
	base := time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC)
	id := 0
	for week := range 130 {
		day := base.AddDate(0, 0, 7*week)
		for n := range 2 + week%3 {
			id++
			fmt.Fprintf(&buf, "INN%05d,%s\n", id, day.AddDate(0, 0, n%6).Format("2006-01-02"))
		}
	}

	path := filepath.Join(t.TempDir(), "reservations.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func startRedis(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	if len(endpoint) > 8 && endpoint[:8] == "redis://" {
		endpoint = endpoint[8:]
	}
	return endpoint
}

// TestServerE2E exercises the full serving surface against a real Redis
// ledger: load assets, predict, batch-predict, list history, forecast.
func TestServerE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	bundle, err := assets.Load(writeAssetFixtures(t))
	if err != nil {
		t.Fatalf("load assets: %v", err)
	}

	store, err := ledger.NewRedisStore(startRedis(t), "", 0)
	if err != nil {
		t.Fatalf("create redis ledger: %v", err)
	}
	defer store.Close()

	svc := predict.NewService(features.NewAligner(bundle), classifier.New(bundle.Model), store, nil, nil)
	engine := forecast.NewEngine(&dataset.CSVSource{Path: writeReservationCSV(t)}, 1, time.Minute, nil, nil)

	server := httptest.NewServer(router.SetupRoutes(svc, engine, nil))
	defer server.Close()

	// Single prediction lands in the ledger.
	resp, err := http.Post(server.URL+"/predict", "application/json",
		bytes.NewReader([]byte(`{"lead_time": 224, "avg_price_per_room": 65.0, "type_of_meal_plan": "Meal Plan 2"}`)))
	if err != nil {
		t.Fatalf("POST /predict: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /predict status = %d", resp.StatusCode)
	}

	var prediction struct {
		Probability float64 `json:"cancellation_probability"`
		RiskScore   float64 `json:"risk_score"`
		Verdict     string  `json:"prediction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		t.Fatalf("decode prediction: %v", err)
	}
	if prediction.Verdict != "Canceled" && prediction.Verdict != "Not_Canceled" {
		t.Errorf("prediction = %q, want a binary verdict", prediction.Verdict)
	}
	if prediction.Probability < 0 || prediction.Probability > 1 {
		t.Errorf("cancellation_probability = %v, want [0, 1]", prediction.Probability)
	}

	// Batch prediction scores without touching the ledger.
	var upload bytes.Buffer
	writer := multipart.NewWriter(&upload)
	part, err := writer.CreateFormFile("file", "batch.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("Booking_ID,lead_time,avg_price_per_room\nINN00001,224,65.0\nINN00002,3,210.0\n"))
	writer.Close()

	batchResp, err := http.Post(server.URL+"/batch-predict", writer.FormDataContentType(), &upload)
	if err != nil {
		t.Fatalf("POST /batch-predict: %v", err)
	}
	defer batchResp.Body.Close()
	if batchResp.StatusCode != http.StatusOK {
		t.Fatalf("POST /batch-predict status = %d", batchResp.StatusCode)
	}

	var batch struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(batchResp.Body).Decode(&batch); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}
	if batch.Count != 2 {
		t.Errorf("batch count = %d, want 2", batch.Count)
	}

	// History holds exactly the single prediction.
	histResp, err := http.Get(server.URL + "/history")
	if err != nil {
		t.Fatalf("GET /history: %v", err)
	}
	defer histResp.Body.Close()

	var history struct {
		Items []ledger.Event `json:"items"`
		Count int            `json:"count"`
	}
	if err := json.NewDecoder(histResp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.Count != 1 {
		t.Errorf("history count = %d, want 1 (batch rows are not recorded)", history.Count)
	}
	if history.Count > 0 && history.Items[0].Probability != prediction.Probability {
		t.Errorf("ledger probability %v differs from response %v",
			history.Items[0].Probability, prediction.Probability)
	}

	// Forecast serves the fixed horizon from the CSV history.
	fcResp, err := http.Get(server.URL + "/forecast")
	if err != nil {
		t.Fatalf("GET /forecast: %v", err)
	}
	defer fcResp.Body.Close()
	if fcResp.StatusCode != http.StatusOK {
		t.Fatalf("GET /forecast status = %d", fcResp.StatusCode)
	}

	var fc struct {
		Observed     []any   `json:"observed"`
		Forecast     []any   `json:"forecast"`
		Intervals    []any   `json:"confidence_intervals"`
		CurrentTrend float64 `json:"current_trend"`
	}
	if err := json.NewDecoder(fcResp.Body).Decode(&fc); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if len(fc.Forecast) != forecast.Horizon {
		t.Errorf("forecast length = %d, want %d", len(fc.Forecast), forecast.Horizon)
	}
	if len(fc.Intervals) != forecast.Horizon {
		t.Errorf("intervals length = %d, want %d", len(fc.Intervals), forecast.Horizon)
	}
	if len(fc.Observed) != forecast.ObservedTail {
		t.Errorf("observed length = %d, want %d", len(fc.Observed), forecast.ObservedTail)
	}
	if fc.CurrentTrend <= 0 {
		t.Errorf("current_trend = %v, want > 0", fc.CurrentTrend)
	}
}
