package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/sekolahku/roster-api/internal/service"
)

// HealthHandler exposes liveness, readiness and observability endpoints.
type HealthHandler struct {
	db      *sqlx.DB
	redis   *redis.Client
	metrics *service.MetricsService
}

// NewHealthHandler constructs a health handler.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, metrics *service.MetricsService) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, metrics: metrics}
}

// Health responds with a generic OK payload for liveness probes.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready checks downstream dependencies. Redis is optional; a disabled cache
// never fails readiness.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	start := time.Now()
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = gin.H{"status": "down", "error": err.Error()}
			healthy = false
		} else {
			checks["database"] = gin.H{"status": "up", "latency_ms": time.Since(start).Milliseconds()}
		}
	}

	if h.redis != nil {
		start = time.Now()
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = gin.H{"status": "down", "error": err.Error()}
		} else {
			checks["redis"] = gin.H{"status": "up", "latency_ms": time.Since(start).Milliseconds()}
		}
	}

	status := http.StatusOK
	overall := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "not ready"
	}
	c.JSON(status, gin.H{"status": overall, "checks": checks})
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *HealthHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Stats serves an aggregate snapshot of runtime counters.
func (h *HealthHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
