package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stwalsh4118/parkspot/internal/middleware"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "1.0.0"
	// HealthCheckTimeout is the timeout for database health checks
	HealthCheckTimeout = 2 * time.Second
)

// DatabaseChecker is the part of *database.Database the health endpoints use.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int64, error)
	Stats() *pgxpool.Stat
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	db        DatabaseChecker
	startTime time.Time
	env       string
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(db DatabaseChecker, env string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startTime: time.Now(),
		env:       env,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// InfoResponse represents the API information response.
// SchemaVersion is omitted when the migration table cannot be read.
type InfoResponse struct {
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	Uptime        string `json:"uptime"`
	SchemaVersion int64  `json:"schema_version,omitempty"`
}

// RegisterRoutes mounts /health, /health/ready and /api/v1/info on r.
func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/health/ready", h.Ready)
	r.GET("/api/v1/info", h.Info)
}

// Health handles GET /health. It never touches dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready.
// Returns 503 Service Unavailable when the database does not answer a ping.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		if log := middleware.GetLogger(c); log != nil {
			fields := poolFields(h.db.Stats())
			fields["timeout"] = HealthCheckTimeout.String()
			log.Error("Database health check failed", err, fields)
		}

		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:   "not_ready",
			Database: "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status:   "ready",
		Database: "connected",
	})
}

// Info handles GET /api/v1/info.
func (h *HealthHandler) Info(c *gin.Context) {
	resp := InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Uptime:      formatUptime(time.Since(h.startTime)),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	version, err := h.db.SchemaVersion(ctx)
	if err != nil {
		if log := middleware.GetLogger(c); log != nil {
			log.Warn("Could not read schema version", map[string]interface{}{
				"error": err.Error(),
			})
		}
	} else {
		resp.SchemaVersion = version
	}

	c.JSON(http.StatusOK, resp)
}

// poolFields describes the connection pool for failure logs.
func poolFields(stat *pgxpool.Stat) map[string]interface{} {
	if stat == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"pool_total_conns":    stat.TotalConns(),
		"pool_idle_conns":     stat.IdleConns(),
		"pool_acquired_conns": stat.AcquiredConns(),
		"pool_max_conns":      stat.MaxConns(),
	}
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
