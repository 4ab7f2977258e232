// Package predict orchestrates the prediction serving pipeline:
//
//	align → infer → append to ledger → respond
//
// The pipeline is deterministic over the frozen asset bundle: the same
// record always yields the same probability, whether served alone or as a
// batch row. The ledger append is part of the request — a storage failure
// fails the whole prediction, because the audit trail is a correctness
// requirement rather than best-effort telemetry.
package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/staycast/staycast/pkg/classifier"
	"github.com/staycast/staycast/pkg/features"
	"github.com/staycast/staycast/pkg/ledger"
)

// Kind discriminates pipeline failure classes so callers and tests can react
// without string matching.
type Kind int

const (
	KindValidation Kind = iota // caller input rejected before any state change
	KindPreprocess             // malformed field values during alignment
	KindInference              // classifier invocation failure
	KindStorage                // ledger append failure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPreprocess:
		return "preprocess"
	case KindInference:
		return "inference"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a pipeline failure tagged with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func failure(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Result is one served prediction.
type Result struct {
	Probability float64            `json:"cancellation_probability"`
	RiskScore   float64            `json:"risk_score"`
	Verdict     classifier.Verdict `json:"prediction"`
}

// BatchResult is one row of a batch prediction.
type BatchResult struct {
	BookingID   string             `json:"Booking_ID"`
	Probability float64            `json:"probability"`
	Verdict     classifier.Verdict `json:"prediction"`
}

// RequiredBatchColumns are the columns a batch upload must carry. The
// aligner tolerates anything missing, but a file without even these two is
// almost certainly not a reservation export, so it is rejected up front.
var RequiredBatchColumns = []string{"lead_time", "avg_price_per_room"}

// Metrics is the subset of instrumentation the pipeline reports into.
// A nil Metrics disables recording.
type Metrics interface {
	RecordPredict(seconds float64)
	RecordAppend(seconds float64)
	RecordPrediction(verdict string)
	RecordError(component, reason string)
}

// Service runs the serving pipeline over the frozen assets and the ledger.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	aligner *features.Aligner
	clf     *classifier.Classifier
	store   ledger.Store
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time
}

// NewService wires the pipeline. logger may be nil (defaults to slog),
// metrics may be nil (disables instrumentation).
func NewService(aligner *features.Aligner, clf *classifier.Classifier, store ledger.Store, logger *slog.Logger, metrics Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		aligner: aligner,
		clf:     clf,
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Predict serves one prediction and records it in the ledger before
// returning. The caller's payload is persisted verbatim.
func (s *Service) Predict(ctx context.Context, record features.Record) (Result, error) {
	result, err := s.score(record)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return Result{}, failure(KindValidation, fmt.Errorf("encode payload: %w", err))
	}

	appendStart := time.Now()
	_, err = s.store.Append(ctx, ledger.Event{
		Timestamp:   s.now().UTC(),
		Payload:     payload,
		Probability: result.Probability,
		Verdict:     string(result.Verdict),
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("ledger", "append_failed")
		}
		return Result{}, failure(KindStorage, err)
	}
	if s.metrics != nil {
		s.metrics.RecordAppend(time.Since(appendStart).Seconds())
		s.metrics.RecordPrediction(string(result.Verdict))
	}

	s.logger.Debug("prediction served",
		"probability", result.Probability,
		"prediction", result.Verdict,
	)

	return result, nil
}

// PredictBatch scores rows sequentially, output order matching input order.
// The first malformed row aborts the whole batch; batch rows are not written
// to the ledger. Each row's result is identical to what Predict would have
// computed for it in isolation.
func (s *Service) PredictBatch(ctx context.Context, rows []features.Record) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(rows))

	for i, row := range rows {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := s.score(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		bookingID := "Unknown"
		if v, ok := row["Booking_ID"].(string); ok && v != "" {
			bookingID = v
		}

		results = append(results, BatchResult{
			BookingID:   bookingID,
			Probability: result.Probability,
			Verdict:     result.Verdict,
		})
	}

	return results, nil
}

// score runs align + infer, the shared deterministic half of the pipeline.
func (s *Service) score(record features.Record) (Result, error) {
	start := time.Now()

	vec, err := s.aligner.Align(record)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("aligner", "malformed_record")
		}
		return Result{}, failure(KindPreprocess, err)
	}

	p, err := s.clf.Infer(vec)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("classifier", "infer_failed")
		}
		return Result{}, failure(KindInference, err)
	}

	if s.metrics != nil {
		s.metrics.RecordPredict(time.Since(start).Seconds())
	}

	return Result{
		Probability: p,
		RiskScore:   classifier.RiskScore(p),
		Verdict:     classifier.Decide(p),
	}, nil
}

// History returns the most recent ledger events, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]ledger.Event, error) {
	events, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, failure(KindStorage, err)
	}
	return events, nil
}
