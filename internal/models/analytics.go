package models

import "time"

// Totals is the headline rollup over a time window.
type Totals struct {
	TotalAttacks  int64   `json:"total_attacks"`
	HighRisk      int64   `json:"high_risk_attacks"`
	UniqueSources int64   `json:"unique_sources"`
	AvgScore      float64 `json:"avg_score"`
}

// Bucket is one time-series slot. Buckets are left-closed/right-open over
// created_at and are emitted even when empty, so charts never show gaps as
// missing data points.
type Bucket struct {
	Time  time.Time `json:"time"`
	Count int64     `json:"count"`
}

// TopEntry is one row of a top-N breakdown for a single dimension.
type TopEntry struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// AnalyticsReport is the GET /api/analytics response.
type AnalyticsReport struct {
	Window       string     `json:"window"`
	Totals       Totals     `json:"totals"`
	TimeSeries   []Bucket   `json:"time_series"`
	TopServices  []TopEntry `json:"top_services"`
	TopActions   []TopEntry `json:"top_actions"`
	TopCountries []TopEntry `json:"top_countries"`
	TopSources   []TopEntry `json:"top_sources"`
}

// ScoreBucket is one slot of the anomaly trend: event count plus the mean
// score inside the bucket.
type ScoreBucket struct {
	Time     time.Time `json:"time"`
	AvgScore float64   `json:"avg_score"`
	Count    int64     `json:"count"`
}

// HighScoreSource is a source address whose mean score crosses the high-risk
// line (0.8).
type HighScoreSource struct {
	SourceAddress string  `json:"source_address"`
	AvgScore      float64 `json:"avg_score"`
	Count         int64   `json:"count"`
}

// RiskSlice is one severity band of the risk distribution.
type RiskSlice struct {
	RiskLevel string `json:"risk_level"`
	Count     int64  `json:"count"`
}

// MLInsights is the GET /api/ml-insights response.
type MLInsights struct {
	AvgAnomalyScore  float64           `json:"avg_anomaly_score"`
	TotalAnomalies   int64             `json:"total_anomalies"`
	AnomalyTrend     []ScoreBucket     `json:"anomaly_trend"`
	HighScoreSources []HighScoreSource `json:"high_score_sources"`
	RiskDistribution []RiskSlice       `json:"risk_distribution"`
}
