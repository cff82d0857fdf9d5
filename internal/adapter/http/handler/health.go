package handler

import (
	"net/http"
	"time"

	"payment-status-relay/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck returns a handler that pings every dependency.
// Returns 200 if all healthy, 503 otherwise.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := make(map[string]string, len(checkers))
		healthy := true

		checkCtx := c.Request.Context()
		for _, checker := range checkers {
			if err := checker.Ping(checkCtx); err != nil {
				deps[checker.Name()] = "down: " + err.Error()
				healthy = false
			} else {
				deps[checker.Name()] = "up"
			}
		}

		status := http.StatusOK
		overall := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":       overall,
			"dependencies": deps,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
