package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/shopscout/cache"
	"github.com/use-agent/shopscout/models"
)

// Searcher runs product searches across the configured sources.
type Searcher interface {
	ScrapeSources(ctx context.Context, query string, ids []string) (*models.AggregateResult, error)
	Sources() []string
}

const exampleQuery = "?query=iphone%2015%20pro"

// Scrape returns a handler for GET /api/scrape and GET /api/v1/scrape.
//
// Orchestration flow:
//  1. Bind query parameters; a missing query is a 400 with an example.
//  2. Cache lookup when max_age > 0.
//  3. Searcher.ScrapeSources → aggregate across sources.
//  4. Cache store (full successes only), return 200.
func Scrape(s Searcher, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.SearchRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ClientErrorResponse{
				Error: err.Error(),
				Code:  models.ErrCodeInvalidInput,
			})
			return
		}
		if req.Query == "" {
			c.JSON(http.StatusBadRequest, models.ClientErrorResponse{
				Error:   "Missing query parameter",
				Example: c.FullPath() + exampleQuery,
			})
			return
		}

		ids := req.SourceIDs()
		if len(ids) == 0 {
			ids = s.Sources()
		}
		log := slog.With("request_id", c.GetString("request_id"), "query", req.Query)

		// ── 2. Cache lookup ─────────────────────────────────────────
		useCache := cc != nil && req.MaxAge > 0 && strings.TrimSpace(req.Query) != ""
		var key string
		if useCache {
			key = cache.Key(req.Query, ids)
			if cached, hit := cc.Get(key, time.Duration(req.MaxAge)*time.Second); hit {
				c.Header("X-Cache", "hit")
				log.Info("served from cache", "scrape_id", cached.ID)
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		// ── 3. Scrape ───────────────────────────────────────────────
		log.Info("scrape requested", "sources", ids)
		agg, err := s.ScrapeSources(c.Request.Context(), req.Query, ids)
		if err != nil {
			respondError(c, err)
			return
		}
		if agg == nil {
			c.JSON(http.StatusNotFound, models.NotFoundResponse{Error: "No results found"})
			return
		}

		// ── 4. Cache store and respond ──────────────────────────────
		if useCache {
			cc.Set(key, agg)
			c.Header("X-Cache", "miss")
		}
		log.Info("scrape served",
			"scrape_id", agg.ID,
			"products", agg.Total(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		c.JSON(http.StatusOK, agg)
	}
}

// respondError maps a scrape error to an HTTP status and JSON body.
// Invalid input is the caller's fault; anything else is unexpected.
func respondError(c *gin.Context, err error) {
	var se *models.ScrapeError
	if errors.As(err, &se) && se.Code == models.ErrCodeInvalidInput {
		c.JSON(http.StatusBadRequest, models.ClientErrorResponse{
			Error: se.Message,
			Code:  se.Code,
		})
		return
	}

	slog.Error("scrape failed", "request_id", c.GetString("request_id"), "error", err)
	c.JSON(http.StatusInternalServerError, models.ServerErrorResponse{
		Error:   "An error occurred while scraping",
		Message: err.Error(),
		Code:    models.CodeOf(err),
	})
}
