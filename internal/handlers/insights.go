package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hivewatch/honeynet-analytics/internal/alerts"
	"github.com/hivewatch/honeynet-analytics/internal/analytics"
	"github.com/hivewatch/honeynet-analytics/internal/models"
	"github.com/hivewatch/honeynet-analytics/internal/store"
)

// RegisterInsightsRoutes registers the scoring overview endpoint.
//
// GET /api/ml-insights
// Store-wide anomaly averages plus an hourly trend over the last 24 hours.
// The risk distribution enumerates every severity band, zero counts included.
func RegisterInsightsRoutes(r gin.IRoutes, st *store.PostgresStore) {
	r.GET("/api/ml-insights", func(c *gin.Context) {
		to := time.Now().UTC()
		from := to.Add(-analytics.DefaultWindow)

		data, err := st.MLInsights(c.Request.Context(), from, to, analytics.DefaultBucketWidth)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		distribution := make([]models.RiskSlice, 0, len(alerts.Bands()))
		for _, band := range alerts.Bands() {
			distribution = append(distribution, models.RiskSlice{
				RiskLevel: band,
				Count:     data.RiskCounts[band],
			})
		}

		sources := data.HighScoreSources
		if sources == nil {
			sources = []models.HighScoreSource{}
		}

		c.JSON(http.StatusOK, models.MLInsights{
			AvgAnomalyScore:  data.AvgAnomalyScore,
			TotalAnomalies:   data.TotalAnomalies,
			AnomalyTrend:     analytics.FillScores(from, to, analytics.DefaultBucketWidth, data.Trend),
			HighScoreSources: sources,
			RiskDistribution: distribution,
		})
	})
}
