package models

import "time"

// InvestigationStats summarizes all activity for one source address,
// computed in a single pass over its event set.
type InvestigationStats struct {
	TotalAttacks   int64      `json:"total_attacks"`
	AvgScore       float64    `json:"avg_score"`
	MaxScore       float64    `json:"max_score"`
	UniqueActions  int64      `json:"unique_actions"`
	UniqueServices int64      `json:"unique_services"`
	FirstSeen      *time.Time `json:"first_seen,omitempty"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
}

// TrendPoint is one chronological (created_at, score) pair.
type TrendPoint struct {
	Time  time.Time `json:"time"`
	Score float64   `json:"score"`
}

// InvestigationReport correlates everything known about one source address.
// An address with no recorded events yields a zero-valued report, not an
// error: "no activity" is a valid answer.
type InvestigationReport struct {
	SourceAddress string             `json:"source_address"`
	Stats         InvestigationStats `json:"stats"`
	Geo           *Geo               `json:"geo_info,omitempty"`
	Events        []Event            `json:"events"`
	ScoreTrend    []TrendPoint       `json:"score_trend"`
}
