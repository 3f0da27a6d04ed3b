package handlers

import (
	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/internal/infrastructure/database"
	"signalcore/internal/transport/http/handlers/admin"
	"signalcore/internal/transport/http/handlers/events"
	"signalcore/internal/transport/http/handlers/health"
	"signalcore/internal/transport/http/handlers/metrics"
)

// Handlers aggregates every HTTP handler the ingestion surface exposes.
type Handlers struct {
	Health  *health.Handler
	Metrics *metrics.Handler
	Events  *events.Handler
	DLQ     *admin.DLQHandler
}

// NewHandlers wires every handler to its dependencies.
func NewHandlers(
	cfg *config.Config,
	logger *logrus.Logger,
	sqlite *database.SqliteDB,
	redis *database.RedisDB,
	queue domain.Queue,
	dlq domain.DLQRepository,
) *Handlers {
	return &Handlers{
		Health:  health.NewHandler(cfg, logger, sqlite, redis),
		Metrics: metrics.NewHandler(cfg, logger),
		Events:  events.NewHandler(queue, cfg, logger),
		DLQ:     admin.NewDLQHandler(dlq, logger),
	}
}
