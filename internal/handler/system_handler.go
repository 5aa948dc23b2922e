package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/service"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type keepAlivePinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// SystemHandler exposes observability and liveness endpoints.
type SystemHandler struct {
	metrics   *service.MetricsService
	db        pinger
	keepAlive keepAlivePinger
}

// NewSystemHandler constructs the handler. db and keepAlive may be nil.
func NewSystemHandler(metrics *service.MetricsService, db pinger, keepAlive keepAlivePinger) *SystemHandler {
	return &SystemHandler{metrics: metrics, db: db, keepAlive: keepAlive}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *SystemHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness probes.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the database answers within two seconds.
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// KeepAlive pings the configured URL once and reports the outcome.
func (h *SystemHandler) KeepAlive(c *gin.Context) {
	if h.keepAlive == nil || !h.keepAlive.Enabled() {
		c.JSON(http.StatusOK, gin.H{"status": "disabled"})
		return
	}
	if err := h.keepAlive.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"status": "failed", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
