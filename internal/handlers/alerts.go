package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hivewatch/honeynet-analytics/internal/alerts"
	"github.com/hivewatch/honeynet-analytics/internal/store"
)

// RegisterAlertRoutes registers the threshold alert view.
//
// GET /api/alerts?threshold=0.85&limit=50
// A pure view over the store: exactly the events with score >= threshold,
// most recent first, each with its derived severity band. No alert state is
// stored, so the same event can never double-count.
func RegisterAlertRoutes(r gin.IRoutes, st *store.PostgresStore) {
	r.GET("/api/alerts", func(c *gin.Context) {
		threshold := 0.85
		if raw := c.Query("threshold"); raw != "" {
			var err error
			threshold, err = strconv.ParseFloat(raw, 64)
			if err != nil || threshold < 0 || threshold > 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a number in [0,1]"})
				return
			}
		}

		limit, err := intQuery(c, "limit", 50)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}

		events, err := st.QueryEvents(c.Request.Context(), store.Filter{
			MinScore: &threshold,
			Limit:    limit,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		list := alerts.FromEvents(events)
		c.JSON(http.StatusOK, gin.H{"alerts": list, "count": len(list)})
	})
}
