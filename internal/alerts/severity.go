// Package alerts derives alert views from stored events. Alerts are not a
// second store: any event at or above the caller's threshold is an alert,
// with severity computed from fixed score bands at read time.
package alerts

import "github.com/hivewatch/honeynet-analytics/internal/models"

// Severity labels, highest first.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// Bands returns the severity labels in descending order of seriousness,
// used to enumerate the risk distribution with zero-count bands included.
func Bands() []string {
	return []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// Severity maps a score onto its fixed band. The bands are part of the
// alerting contract and are intentionally not configurable.
func Severity(score float64) string {
	switch {
	case score >= 0.90:
		return SeverityCritical
	case score >= 0.85:
		return SeverityHigh
	case score >= 0.75:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Alert is an event annotated with its derived severity.
type Alert struct {
	models.Event
	Severity string `json:"severity"`
}

// FromEvents annotates a slice of qualifying events, preserving order.
func FromEvents(events []models.Event) []Alert {
	out := make([]Alert, 0, len(events))
	for _, ev := range events {
		out = append(out, Alert{Event: ev, Severity: Severity(ev.Score)})
	}
	return out
}
