package models

import "time"

// Event is one recorded sensor interaction. Once committed it is immutable:
// corrections are new events, never updates, so aggregates and alert history
// stay reproducible from the store alone.
type Event struct {
	ID            int64     `json:"id"`
	SourceAddress string    `json:"source_address"`
	Service       string    `json:"service"`
	Action        string    `json:"action"`
	TargetFile    *string   `json:"target_file,omitempty"`
	UserAgent     *string   `json:"user_agent,omitempty"`
	Score         float64   `json:"score"`
	IsAnomaly     bool      `json:"is_anomaly"`
	Country       *string   `json:"country,omitempty"`
	Region        *string   `json:"region,omitempty"`
	City          *string   `json:"city,omitempty"`
	ISP           *string   `json:"isp,omitempty"`
	SensorID      string    `json:"sensor_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventDraft is the POST /log payload from a sensor. Score, anomaly flag and
// enrichment are assigned during ingestion, not supplied by the sensor.
type EventDraft struct {
	SourceAddress string  `json:"source_address"`
	Service       string  `json:"service"`
	Action        string  `json:"action"`
	TargetFile    *string `json:"target_file,omitempty"`
	UserAgent     *string `json:"user_agent,omitempty"`
}

// Validate checks the required-field contract for ingestion.
func (d EventDraft) Validate() error {
	if d.SourceAddress == "" {
		return NewValidationError("source_address required")
	}
	if d.Service == "" {
		return NewValidationError("service required")
	}
	if d.Action == "" {
		return NewValidationError("action required")
	}
	return nil
}

// Geo carries the enrichment fields resolved for a source address. All fields
// may be empty when the lookup failed or the address is private.
type Geo struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
}

// IsZero reports whether no enrichment data was resolved.
func (g Geo) IsZero() bool {
	return g.Country == "" && g.Region == "" && g.City == "" && g.ISP == ""
}
