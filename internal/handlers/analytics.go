package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hivewatch/honeynet-analytics/internal/analytics"
	"github.com/hivewatch/honeynet-analytics/internal/models"
	"github.com/hivewatch/honeynet-analytics/internal/store"
)

// RegisterAnalyticsRoutes registers the rollup endpoint.
//
// GET /api/analytics?window=24h&bucket=1h
// Totals, a zero-filled time series and the top-N breakdowns, all computed
// from one store snapshot. The window is [now-window, now).
func RegisterAnalyticsRoutes(r gin.IRoutes, st *store.PostgresStore) {
	r.GET("/api/analytics", func(c *gin.Context) {
		window, err := analytics.ParseWindow(c.Query("window"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		bucket, err := analytics.ParseBucket(c.Query("bucket"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		to := time.Now().UTC()
		from := to.Add(-window)

		data, err := st.Analytics(c.Request.Context(), from, to, bucket)
		if err != nil {
			// Never return a partial rollup; fail the whole query instead.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, models.AnalyticsReport{
			Window:       window.String(),
			Totals:       data.Totals,
			TimeSeries:   analytics.Fill(from, to, bucket, data.Buckets),
			TopServices:  orEmpty(data.TopServices),
			TopActions:   orEmpty(data.TopActions),
			TopCountries: orEmpty(data.TopCountries),
			TopSources:   orEmpty(data.TopSources),
		})
	})
}

// orEmpty keeps empty breakdowns as [] rather than null in JSON.
func orEmpty(entries []models.TopEntry) []models.TopEntry {
	if entries == nil {
		return []models.TopEntry{}
	}
	return entries
}
