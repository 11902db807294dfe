package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/sillage/models"
)

// Version is reported by the health and info endpoints.
const Version = "0.1.0"

// PoolStatsFunc reports browser pool usage. Nil when no browser runs.
type PoolStatsFunc func() models.PoolStats

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when more than 80% of the browser pages are busy.
func Health(stats PoolStatsFunc, fetchMode string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ps models.PoolStats
		if stats != nil {
			ps = stats()
		}

		status := "healthy"
		if ps.MaxPages > 0 && ps.ActivePages > int(float64(ps.MaxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			FetchMode: fetchMode,
			PoolStats: ps,
			Version:   Version,
		})
	}
}
