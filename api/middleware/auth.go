package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/shopscout/models"
)

// Auth returns API-key authentication middleware.
//
// Supports two header styles:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// If apiKeys is empty, the middleware is a no-op (open access).
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ClientErrorResponse{
				Error: "missing API key: provide X-API-Key header or Authorization: Bearer <key>",
				Code:  models.ErrCodeUnauthorized,
			})
			return
		}

		if !validKey(keys, []byte(key)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ClientErrorResponse{
				Error: "invalid API key",
				Code:  models.ErrCodeUnauthorized,
			})
			return
		}

		c.Set(apiKeyCtxKey, key)
		c.Next()
	}
}

func validKey(keys [][]byte, candidate []byte) bool {
	ok := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k, candidate) == 1 {
			ok = true
		}
	}
	return ok
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
