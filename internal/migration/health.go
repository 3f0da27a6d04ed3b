package migration

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthService exposes the migration manager's status for an HTTP health
// endpoint or the migrate CLI's `status` subcommand.
type HealthService struct {
	manager *Manager
	logger  *logrus.Logger
}

// NewHealthService returns a migration health service.
func NewHealthService(manager *Manager, logger *logrus.Logger) *HealthService {
	return &HealthService{manager: manager, logger: logger}
}

// HealthCheckResponse is the wire shape of GetHealthStatus.
type HealthCheckResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        uint      `json:"current_version"`
	IsDirty        bool      `json:"is_dirty"`
	Error          string    `json:"error,omitempty"`
	ResponseTime   string    `json:"response_time"`
	Recommendation string    `json:"recommendation,omitempty"`
}

// GetHealthStatus reports the SQLite store's migration health.
func (hs *HealthService) GetHealthStatus(ctx context.Context) (*HealthCheckResponse, error) {
	start := time.Now()
	status := hs.manager.GetStatus()

	resp := &HealthCheckResponse{
		Status:       status.Status,
		Timestamp:    start,
		Version:      status.CurrentVersion,
		IsDirty:      status.IsDirty,
		Error:        status.Error,
		ResponseTime: time.Since(start).String(),
	}

	if status.IsDirty {
		resp.Recommendation = "schema is dirty after a failed migration; run `migrate force -version N` to clear it"
	}

	hs.logger.WithFields(logrus.Fields{
		"status":  resp.Status,
		"version": resp.Version,
		"dirty":   resp.IsDirty,
	}).Info("migration health check completed")

	return resp, nil
}

// StatusCode maps the health status to an HTTP status code for a readiness
// probe: dirty or errored migrations should fail readiness.
func (r *HealthCheckResponse) StatusCode() int {
	switch r.Status {
	case "healthy":
		return http.StatusOK
	case "dirty":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
