package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hivewatch/honeynet-analytics/internal/auth"
	"github.com/hivewatch/honeynet-analytics/internal/config"
	"github.com/hivewatch/honeynet-analytics/internal/handlers"
	"github.com/hivewatch/honeynet-analytics/internal/store"
)

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready, /metrics
// Authenticated: /log plus every read view
func NewRouter(cfg config.Config, st *store.PostgresStore, pipeline handlers.IngestPipeline, reg *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Auth group enforces sensor/console identity via X-API-Key.
	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(auth.NewKeyring(cfg.APIKeys)))

	handlers.RegisterIngestRoutes(authGroup, pipeline)
	handlers.RegisterFeedRoutes(authGroup, st)
	handlers.RegisterAnalyticsRoutes(authGroup, st)
	handlers.RegisterInsightsRoutes(authGroup, st)
	handlers.RegisterAlertRoutes(authGroup, st)
	handlers.RegisterInvestigateRoutes(authGroup, st)

	return r
}
