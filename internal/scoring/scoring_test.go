package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivewatch/honeynet-analytics/internal/models"
)

func strptr(s string) *string { return &s }

func TestHeuristicScorer_BenignDraft(t *testing.T) {
	s := NewHeuristicScorer()

	res, err := s.Score(context.Background(), models.EventDraft{
		SourceAddress: "203.0.113.7",
		Service:       "GitLab",
		Action:        "page_view",
	})

	require.NoError(t, err)
	assert.InDelta(t, 0.15, res.Score, 1e-9)
	assert.False(t, res.IsAnomaly)
}

func TestHeuristicScorer_StacksIndicators(t *testing.T) {
	s := NewHeuristicScorer()

	res, err := s.Score(context.Background(), models.EventDraft{
		SourceAddress: "203.0.113.7",
		Service:       "GitLab",
		Action:        "ci_credentials_access",
		TargetFile:    strptr("/repo/.env"),
		UserAgent:     strptr("curl/8.4.0"),
	})

	require.NoError(t, err)
	assert.InDelta(t, 0.95, res.Score, 1e-9)
	assert.True(t, res.IsAnomaly)
}

func TestHeuristicScorer_ScoreNeverExceedsOne(t *testing.T) {
	s := NewHeuristicScorer()

	res, err := s.Score(context.Background(), models.EventDraft{
		SourceAddress: "203.0.113.7",
		Service:       "Jenkins",
		Action:        "FILE_ACCESS", // case-insensitive match
		TargetFile:    strptr("credentials/id_rsa"),
		UserAgent:     strptr("python-requests/2.31"),
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, res.Score, 1.0)
	assert.True(t, res.IsAnomaly)
}

func TestHTTPScorer_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var draft models.EventDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		assert.Equal(t, "10.0.0.5", draft.SourceAddress)

		_ = json.NewEncoder(w).Encode(Result{Score: 0.91, IsAnomaly: true})
	}))
	defer srv.Close()

	s := NewHTTPScorer(srv.URL, 2*time.Second)
	res, err := s.Score(context.Background(), models.EventDraft{
		SourceAddress: "10.0.0.5",
		Service:       "SSH",
		Action:        "login_attempt",
	})

	require.NoError(t, err)
	assert.Equal(t, 0.91, res.Score)
	assert.True(t, res.IsAnomaly)
}

func TestHTTPScorer_RejectsOutOfRangeScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Result{Score: 1.7})
	}))
	defer srv.Close()

	s := NewHTTPScorer(srv.URL, 2*time.Second)
	_, err := s.Score(context.Background(), models.EventDraft{SourceAddress: "10.0.0.5"})

	assert.Error(t, err)
}

func TestHTTPScorer_ErrorStatusIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPScorer(srv.URL, 2*time.Second)
	_, err := s.Score(context.Background(), models.EventDraft{SourceAddress: "10.0.0.5"})

	assert.Error(t, err)
}
