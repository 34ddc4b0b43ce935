package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jengzang/trailbloom-backend/internal/handler"
	"github.com/jengzang/trailbloom-backend/internal/middleware"
	"github.com/jengzang/trailbloom-backend/internal/service"
)

// Admin refresh requests allowed per client per window
const (
	adminRateLimit  = 5
	adminRateWindow = time.Minute
)

// Deps are the services the router exposes
type Deps struct {
	TrailCounts *service.TrailCountService
	Refresh     *service.RefreshService
	Gatherer    prometheus.Gatherer
	JWTSecret   string
	Logger      *slog.Logger
}

// SetupRouter builds the HTTP API
func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(deps.Logger))

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Trailbloom API is running",
		})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		counts := handler.NewTrailCountHandler(deps.TrailCounts)
		regions := api.Group("/regions/:region")
		{
			regions.GET("/trail-counts", counts.ListTrailCounts)
			regions.GET("/trail-counts/:trail", counts.GetTrailCount)
			regions.GET("/summary", counts.GetRegionSummary)
		}

		refresh := handler.NewRefreshHandler(deps.Refresh)
		admin := api.Group("/admin",
			middleware.RateLimit(adminRateLimit, adminRateWindow),
			middleware.RequireAdmin(deps.JWTSecret))
		{
			admin.POST("/refresh", refresh.Trigger)
			admin.GET("/refresh/last", refresh.LastRun)
		}
	}

	return r
}
