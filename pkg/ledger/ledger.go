// Package ledger provides the append-only audit trail of served predictions.
//
// Every prediction the service returns is recorded as an immutable Event
// before the response goes out; a failed append fails the whole request.
// Retrieval is reverse-chronological by insertion order.
package ledger

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultListLimit is the number of events returned when no explicit limit
// is given.
const DefaultListLimit = 50

// Event is one immutable audit record of a served prediction. The payload is
// stored verbatim and is opaque to the ledger, so historical predictions can
// be replayed even if the feature schema changes later.
type Event struct {
	ID          int64           `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
	Probability float64         `json:"probability"`
	Verdict     string          `json:"prediction"`
}

// Store is the ledger contract. Append assigns and returns the event's
// insertion sequence id; concurrent appends are serialized so List ordering
// is strictly by insertion. List returns the most recent events first;
// limit <= 0 means DefaultListLimit.
type Store interface {
	Append(ctx context.Context, event Event) (int64, error)
	List(ctx context.Context, limit int) ([]Event, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
