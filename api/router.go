package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/shopscout/api/handler"
	"github.com/use-agent/shopscout/api/middleware"
	"github.com/use-agent/shopscout/cache"
	"github.com/use-agent/shopscout/config"
	"github.com/use-agent/shopscout/engine"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → RequestID → CORS
//	Scrape:  Auth (if enabled) → RateLimit
//
// Status, health and metrics stay outside auth so monitoring probes always work.
func NewRouter(s handler.Searcher, sessions handler.SessionStats, cfg *config.Config, cc *cache.Cache, metrics *engine.Metrics, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/", handler.Status())
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	}

	protect := []gin.HandlerFunc{}
	if cfg.Auth.Enabled {
		protect = append(protect, middleware.Auth(cfg.Auth.APIKeys))
	}
	protect = append(protect, middleware.RateLimit(cfg.RateLimit))

	// Original route, kept for existing clients.
	legacy := r.Group("/api", protect...)
	legacy.GET("/scrape", handler.Scrape(s, cc))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(sessions, s, startTime))
	v1.Group("", protect...).GET("/scrape", handler.Scrape(s, cc))

	return r
}
