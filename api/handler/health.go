package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/shopscout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// SessionStats reports browser session usage.
type SessionStats interface {
	Stats() models.Sessions
}

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when every browser session slot is taken, since new
// searches would queue behind the running ones.
func Health(sessions SessionStats, s Searcher, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sessions.Stats()

		status := "healthy"
		if stats.Limit > 0 && stats.Active >= stats.Limit {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   status,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Sessions: stats,
			Sources:  s.Sources(),
			Version:  Version,
		})
	}
}

// Status returns a handler for GET /, listing the available endpoints.
func Status() gin.HandlerFunc {
	body := models.StatusResponse{
		Status:  "ok",
		Message: "Product scraper API is running",
		Endpoints: map[string]string{
			"scrape":    "/api/scrape?query=product+name",
			"scrape_v1": "/api/v1/scrape?query=product+name&sources=amazon,flipkart&max_age=60",
			"health":    "/api/v1/health",
			"metrics":   "/metrics",
		},
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, body)
	}
}
