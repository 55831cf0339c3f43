package scoring

import (
	"context"
	"strings"

	"github.com/hivewatch/honeynet-analytics/internal/models"
)

// Indicator tables for the built-in scorer. Derived from observed attacker
// behavior against CI/file-share decoys.
var (
	suspiciousActions = map[string]bool{
		"file_access":           true,
		"ci_credentials_access": true,
		"git_push":              true,
		"credential_harvesting": true,
		"command_injection":     true,
	}

	sensitiveFileFragments = []string{".env", "secrets.yml", "config.json", "credentials", "id_rsa"}

	automatedToolFragments = []string{"curl", "wget", "python-requests", "go-http-client", "masscan", "nmap"}
)

// anomalyThreshold marks a draft as anomalous once its heuristic score
// crosses it.
const anomalyThreshold = 0.7

// HeuristicScorer is the local fallback scorer used when no remote model is
// configured. It sums fixed indicator weights, which keeps scores stable and
// reproducible across restarts.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the indicator-based scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score implements Scorer. It never fails: the indicator tables are local.
func (s *HeuristicScorer) Score(_ context.Context, draft models.EventDraft) (Result, error) {
	score := 0.15

	if suspiciousActions[strings.ToLower(draft.Action)] {
		score += 0.35
	}

	if draft.TargetFile != nil {
		target := strings.ToLower(*draft.TargetFile)
		for _, frag := range sensitiveFileFragments {
			if strings.Contains(target, frag) {
				score += 0.30
				break
			}
		}
	}

	if draft.UserAgent != nil {
		ua := strings.ToLower(*draft.UserAgent)
		for _, frag := range automatedToolFragments {
			if strings.Contains(ua, frag) {
				score += 0.15
				break
			}
		}
	}

	if score > 1 {
		score = 1
	}

	return validate(Result{Score: score, IsAnomaly: score >= anomalyThreshold})
}
