// Package router configures HTTP routes for the staycast server.
//
// Routes configured:
//   - GET  /                - Service identification
//   - POST /predict         - Score one reservation and record it
//   - POST /batch-predict   - Score an uploaded CSV of reservations
//   - GET  /history?limit=N - Recent predictions, newest first
//   - GET  /forecast        - Weekly booking-volume forecast
//   - GET  /healthz         - Health check endpoint (returns 200 OK)
//   - GET  /metrics         - Prometheus metrics endpoint
//
// Client mistakes (malformed JSON, malformed field values, uploads that are
// not reservation CSVs) map to 400; everything else maps to 500 with the
// standard {"error":"<msg>"} envelope.
package router

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/staycast/staycast/pkg/features"
	"github.com/staycast/staycast/pkg/forecast"
	"github.com/staycast/staycast/pkg/httpx"
	"github.com/staycast/staycast/pkg/ledger"
	"github.com/staycast/staycast/pkg/predict"
)

// maxUploadBytes bounds batch CSV uploads.
const maxUploadBytes = 32 << 20

// SetupRoutes configures HTTP endpoints for the server.
func SetupRoutes(svc *predict.Service, engine *forecast.Engine, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handleRoot())
	mux.HandleFunc("POST /predict", handlePredict(svc, logger))
	mux.HandleFunc("POST /batch-predict", handleBatchPredict(svc, logger))
	mux.HandleFunc("GET /history", handleHistory(svc, logger))
	mux.HandleFunc("GET /forecast", handleForecast(engine, logger))

	mux.Handle("GET /healthz", httpx.HealthHandler())
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"service": "staycast",
			"message": "Hotel reservation cancellation prediction API",
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			slog.Error("failed to write JSON response", "error", err)
		}
	}
}

// handlePredict returns a handler for POST /predict.
func handlePredict(svc *predict.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var record features.Record
		decoder := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes))
		decoder.UseNumber()
		if err := decoder.Decode(&record); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		result, err := svc.Predict(r.Context(), record)
		if err != nil {
			writePipelineError(w, logger, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, result); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleBatchPredict returns a handler for POST /batch-predict. The upload is
// a multipart form with a "file" field holding a reservation CSV.
func handleBatchPredict(svc *predict.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "multipart file field is required")
			return
		}
		defer file.Close()

		if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "only CSV files are supported")
			return
		}

		rows, err := parseBatchCSV(file)
		if err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
			return
		}

		results, err := svc.PredictBatch(r.Context(), rows)
		if err != nil {
			writePipelineError(w, logger, err)
			return
		}

		resp := map[string]any{
			"results": results,
			"count":   len(results),
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// parseBatchCSV reads the upload into one record per row. Empty cells are
// left out of the record so the aligner applies its missing-field policy.
func parseBatchCSV(r io.Reader) ([]features.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New("CSV file is empty or unreadable")
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	columns := make(map[string]bool, len(header))
	for _, name := range header {
		columns[name] = true
	}
	for _, required := range predict.RequiredBatchColumns {
		if !columns[required] {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	var rows []features.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed CSV: %v", err)
		}

		record := make(features.Record, len(header))
		for i, name := range header {
			if i >= len(row) {
				break
			}
			value := strings.TrimSpace(row[i])
			if value == "" {
				continue
			}
			record[name] = value
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, errors.New("CSV contains no data rows")
	}

	return rows, nil
}

// handleHistory returns a handler for GET /history?limit=N.
func handleHistory(svc *predict.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				httpx.WriteErrorMessage(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		events, err := svc.History(r.Context(), limit)
		if err != nil {
			writePipelineError(w, logger, err)
			return
		}

		if events == nil {
			events = []ledger.Event{}
		}

		resp := map[string]any{
			"items": events,
			"count": len(events),
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleForecast returns a handler for GET /forecast.
func handleForecast(engine *forecast.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := engine.Run(r.Context())
		if err != nil {
			logger.Error("forecast failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, result); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// writePipelineError maps a prediction pipeline error to an HTTP status:
// caller mistakes to 400, server-side failures to 500.
func writePipelineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var perr *predict.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case predict.KindValidation, predict.KindPreprocess:
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
	}

	logger.Error("prediction failed", "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, err)
}
