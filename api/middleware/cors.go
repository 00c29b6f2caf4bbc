package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

// CORS adapts go-chi/cors to gin. The API is read-only and public, so any
// origin may issue GET requests.
func CORS() gin.HandlerFunc {
	policy := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "X-Cache"},
		MaxAge:         300,
	})

	return func(c *gin.Context) {
		proceed := false
		policy.Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			proceed = true
			c.Request = r
		})).ServeHTTP(c.Writer, c.Request)

		// Preflight requests are answered by the policy and stop here.
		if !proceed {
			c.Abort()
			return
		}
		c.Next()
	}
}
