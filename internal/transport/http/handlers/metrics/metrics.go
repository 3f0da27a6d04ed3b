package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
)

// Handler serves the process-level Prometheus metrics endpoint, separate
// from the domain-level Metrics Store the slow path writes to.
type Handler struct {
	config *config.Config
	logger *logrus.Logger
}

// NewHandler creates a new metrics handler
func NewHandler(config *config.Config, logger *logrus.Logger) *Handler {
	return &Handler{
		config: config,
		logger: logger,
	}
}

// Handler serves the Prometheus text-format metrics endpoint.
func (h *Handler) Handler(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}
