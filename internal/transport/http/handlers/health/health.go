package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
	"signalcore/internal/infrastructure/database"
)

// Handler handles health check endpoints for the ingestion surface.
type Handler struct {
	config    *config.Config
	logger    *logrus.Logger
	sqlite    *database.SqliteDB
	redis     *database.RedisDB
	startTime time.Time
}

// NewHandler creates a new health handler.
func NewHandler(cfg *config.Config, logger *logrus.Logger, sqlite *database.SqliteDB, redis *database.RedisDB) *Handler {
	return &Handler{
		config:    cfg,
		logger:    logger,
		sqlite:    sqlite,
		redis:     redis,
		startTime: time.Now(),
	}
}

// HealthResponse is the JSON shape returned by all three health routes.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
}

// HealthCheck is one component's check result.
type HealthCheck struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	LastChecked string `json:"last_checked"`
	Duration    string `json:"duration,omitempty"`
}

// Check reports basic liveness without touching dependencies.
func (h *Handler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
	})
}

// Ready reports whether SQLite and Redis are both reachable, which is what
// the fast path needs to accept and commit a batch.
func (h *Handler) Ready(c *gin.Context) {
	checks := map[string]HealthCheck{
		"sqlite": h.checkSqlite(),
		"redis":  h.checkRedis(),
	}

	status := "healthy"
	code := http.StatusOK
	for _, check := range checks {
		if check.Status != "healthy" {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    checks,
	})
}

// Live reports process liveness only — no dependency is touched, so this
// never flaps during a transient Redis blip.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).String(),
	})
}

func (h *Handler) checkSqlite() HealthCheck {
	start := time.Now()
	if err := h.sqlite.Health(); err != nil {
		return HealthCheck{
			Status:      "unhealthy",
			Message:     err.Error(),
			LastChecked: time.Now().UTC().Format(time.RFC3339),
			Duration:    time.Since(start).String(),
		}
	}
	return HealthCheck{
		Status:      "healthy",
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

func (h *Handler) checkRedis() HealthCheck {
	start := time.Now()
	if err := h.redis.Health(); err != nil {
		return HealthCheck{
			Status:      "unhealthy",
			Message:     err.Error(),
			LastChecked: time.Now().UTC().Format(time.RFC3339),
			Duration:    time.Since(start).String(),
		}
	}
	return HealthCheck{
		Status:      "healthy",
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}
