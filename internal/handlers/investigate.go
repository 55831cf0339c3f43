package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hivewatch/honeynet-analytics/internal/store"
)

// Result-size caps for one investigation call.
const (
	investigateEventLimit = 100
	investigateTrendLimit = 1000
)

// RegisterInvestigateRoutes registers the per-address correlation endpoint.
//
// GET /api/investigate/:address
// Full history, summary statistics, chronological score trend and the most
// recent enrichment for one source address. An address with no recorded
// events returns an empty zero-valued report with 200, not 404: "no
// activity" is an answer.
func RegisterInvestigateRoutes(r gin.IRoutes, st *store.PostgresStore) {
	r.GET("/api/investigate/:address", func(c *gin.Context) {
		address := c.Param("address")
		if address == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "address required"})
			return
		}

		report, err := st.Investigate(c.Request.Context(), address, investigateEventLimit, investigateTrendLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, report)
	})
}
