package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the configured frontend origins. ALLOWED_ORIGINS is a
// comma-separated list; empty allows any origin (development).
func CORSMiddleware() gin.HandlerFunc {
	allowed := strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowOrigin := ""
		if os.Getenv("ALLOWED_ORIGINS") == "" {
			allowOrigin = "*"
		} else {
			for _, a := range allowed {
				if strings.TrimSpace(a) == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
