// Package scoring is the call boundary to the maliciousness scorer. The
// model itself is external; this package fixes the invocation contract:
// one synchronous call per ingested event, returning a score in [0,1] and
// an anomaly flag. A scorer failure is fatal to that ingestion: an event
// must never be committed with a silently defaulted score.
package scoring

import (
	"context"
	"fmt"

	"github.com/hivewatch/honeynet-analytics/internal/models"
)

// Result is the scorer's verdict for one event draft.
type Result struct {
	Score     float64 `json:"score"`
	IsAnomaly bool    `json:"is_anomaly"`
}

// Scorer scores an event draft before commit.
type Scorer interface {
	Score(ctx context.Context, draft models.EventDraft) (Result, error)
}

// validate rejects out-of-range scores regardless of which scorer produced
// them; a score outside [0,1] would corrupt every downstream aggregate.
func validate(r Result) (Result, error) {
	if r.Score < 0 || r.Score > 1 {
		return Result{}, fmt.Errorf("score %v outside [0,1]", r.Score)
	}
	return r, nil
}
