package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hivewatch/honeynet-analytics/internal/models"
)

// HTTPScorer calls a remote scoring service: POST <url> with the event draft,
// expecting a {"score": float, "is_anomaly": bool} body.
type HTTPScorer struct {
	url  string
	http *retryablehttp.Client
}

// NewHTTPScorer builds a scorer client with bounded retries and a hard
// per-call timeout so a slow model cannot stall the ingestion path for long.
func NewHTTPScorer(url string, timeout time.Duration) *HTTPScorer {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 500 * time.Millisecond
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	return &HTTPScorer{url: url, http: client}
}

// Score implements Scorer.
func (s *HTTPScorer) Score(ctx context.Context, draft models.EventDraft) (Result, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return Result{}, fmt.Errorf("marshal draft: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build scorer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("scorer call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var r Result
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Result{}, fmt.Errorf("decode scorer response: %w", err)
	}

	return validate(r)
}
