package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hivewatch/honeynet-analytics/internal/alerts"
	"github.com/hivewatch/honeynet-analytics/internal/auth"
	"github.com/hivewatch/honeynet-analytics/internal/metrics"
	"github.com/hivewatch/honeynet-analytics/internal/models"
	"github.com/hivewatch/honeynet-analytics/internal/scoring"
)

// EventInserter is the slice of the store the ingestion path writes through.
type EventInserter interface {
	InsertEvent(ctx context.Context, draft models.EventDraft, score float64, isAnomaly bool, geo models.Geo, sensorID string) (models.Event, error)
}

// Enricher resolves geolocation data for a source address.
type Enricher interface {
	Lookup(ctx context.Context, addr string) (models.Geo, error)
}

// AlertSink receives qualifying events for asynchronous delivery.
type AlertSink interface {
	Notify(alert alerts.Alert)
}

// IngestPipeline wires the ingestion path: draft → score → enrich → commit
// → notify. Scoring failures abort the ingestion; enrichment failures do not.
type IngestPipeline struct {
	Store          EventInserter
	Scorer         scoring.Scorer
	Enricher       Enricher
	Alerts         AlertSink
	Metrics        *metrics.Metrics
	AlertThreshold float64
	EnrichTimeout  time.Duration
	Logger         zerolog.Logger
}

// RegisterIngestRoutes registers the ingestion-path endpoint.
//
// POST /log
// - Requires X-API-Key (sensor identity)
// - Durable: returns success only after the DB write completes
// - The committed event, with assigned id, score and enrichment, is echoed back
func RegisterIngestRoutes(r gin.IRoutes, p IngestPipeline) {
	r.POST("/log", func(c *gin.Context) {
		started := time.Now()

		sensorID := auth.SensorID(c)
		if sensorID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var draft models.EventDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			p.Metrics.ValidationRejects.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		if err := draft.Validate(); err != nil {
			p.Metrics.ValidationRejects.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Score first: an event must never be committed without one.
		result, err := p.Scorer.Score(c.Request.Context(), draft)
		if err != nil {
			p.Metrics.ScoringFailures.Inc()
			p.Logger.Error().Err(fmt.Errorf("%w: %v", models.ErrScoring, err)).
				Str("source_address", draft.SourceAddress).
				Msg("rejecting event")
			c.JSON(http.StatusBadGateway, gin.H{"error": models.ErrScoring.Error()})
			return
		}

		// Enrichment is best-effort: on failure the event commits with
		// empty geo fields rather than blocking ingestion.
		geo := p.enrich(c.Request.Context(), draft.SourceAddress)

		ev, err := p.Store.InsertEvent(c.Request.Context(), draft, result.Score, result.IsAnomaly, geo, sensorID)
		if err != nil {
			if errors.Is(err, models.ErrValidation) {
				p.Metrics.ValidationRejects.Inc()
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			p.Logger.Error().Err(err).Msg("event insert failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db insert failed"})
			return
		}

		// Push notification happens after commit and off this path.
		if ev.Score >= p.AlertThreshold && p.Alerts != nil {
			p.Metrics.AlertsPublished.Inc()
			p.Alerts.Notify(alerts.Alert{Event: ev, Severity: alerts.Severity(ev.Score)})
		}

		p.Metrics.EventsIngested.Inc()
		p.Metrics.IngestDuration.Observe(time.Since(started).Seconds())

		c.JSON(http.StatusCreated, ev)
	})
}

// enrich runs the bounded-timeout enrichment call and reduces every failure
// mode to "no enrichment".
func (p IngestPipeline) enrich(ctx context.Context, addr string) models.Geo {
	if p.Enricher == nil {
		return models.Geo{}
	}

	ctx, cancel := context.WithTimeout(ctx, p.EnrichTimeout)
	defer cancel()

	geo, err := p.Enricher.Lookup(ctx, addr)
	if err != nil {
		p.Metrics.EnrichmentFailures.Inc()
		p.Logger.Warn().Err(err).Str("source_address", addr).Msg("enrichment failed, committing without geo data")
		return models.Geo{}
	}
	return geo
}
