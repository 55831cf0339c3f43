package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hivewatch/honeynet-analytics/internal/store"
)

// RegisterFeedRoutes registers the live feed and the raw log retrieval
// endpoint.
//
// GET /api/live-events?limit=&source_address=&min_score=
// GET /logs?source_address=&service=&action=&limit=&offset=
//
// Both are reverse-chronological views over the append-only store, so two
// successive polls with the same filter are monotonically consistent: an
// event seen once can never vanish from a later response.
func RegisterFeedRoutes(r gin.IRoutes, st *store.PostgresStore) {
	r.GET("/api/live-events", func(c *gin.Context) {
		limit, err := intQuery(c, "limit", 50)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}

		f := store.Filter{
			SourceAddress: c.Query("source_address"),
			Limit:         limit,
		}

		if raw := c.Query("min_score"); raw != "" {
			minScore, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be a number"})
				return
			}
			f.MinScore = &minScore
		}

		events, err := st.QueryEvents(c.Request.Context(), f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
	})

	r.GET("/logs", func(c *gin.Context) {
		limit, err := intQuery(c, "limit", store.DefaultLimit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		offset, err := intQuery(c, "offset", 0)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}

		events, err := st.QueryEvents(c.Request.Context(), store.Filter{
			SourceAddress: c.Query("source_address"),
			Service:       c.Query("service"),
			Action:        c.Query("action"),
			Limit:         limit,
			Offset:        offset,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"logs":   events,
			"count":  len(events),
			"limit":  limit,
			"offset": offset,
		})
	})
}

// intQuery parses an optional integer query parameter.
func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
