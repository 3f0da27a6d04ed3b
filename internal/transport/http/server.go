package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
	"signalcore/internal/transport/http/handlers"
	"signalcore/internal/transport/http/middleware"
)

// Server is the ingestion HTTP surface: POST /events plus health, ready,
// live, and /metrics. It carries none of the teacher's auth/JWT/CORS-for-
// cookies/swagger machinery since this pipeline has no multi-tenant
// session surface to protect.
type Server struct {
	config   *config.Config
	logger   *logrus.Logger
	server   *http.Server
	handlers *handlers.Handlers
	engine   *gin.Engine
}

// NewServer creates a new HTTP server instance.
func NewServer(cfg *config.Config, logger *logrus.Logger, handlers *handlers.Handlers) *Server {
	return &Server{
		config:   cfg,
		logger:   logger,
		handlers: handlers,
	}
}

// Start builds the route table and blocks serving HTTP until the listener
// is closed (by Shutdown).
func (s *Server) Start() error {
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	s.engine = gin.New()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.engine,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.WithField("addr", s.server.Addr).Info("starting ingest http server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger(s.logger))
	s.engine.Use(middleware.Recovery(s.logger))
	s.engine.Use(middleware.Metrics())
	if s.config.Server.MaxRequestSize > 0 {
		s.engine.Use(middleware.MaxRequestSize(s.config.Server.MaxRequestSize))
	}

	s.engine.GET("/health", s.handlers.Health.Check)
	s.engine.HEAD("/health", s.handlers.Health.Check)
	s.engine.GET("/health/ready", s.handlers.Health.Ready)
	s.engine.HEAD("/health/ready", s.handlers.Health.Ready)
	s.engine.GET("/health/live", s.handlers.Health.Live)
	s.engine.HEAD("/health/live", s.handlers.Health.Live)

	s.engine.GET("/metrics", s.handlers.Metrics.Handler)

	s.engine.POST("/events", s.handlers.Events.Ingest)

	admin := s.engine.Group("/admin/dlq")
	{
		admin.GET("", s.handlers.DLQ.List)
		admin.POST("/replay", s.handlers.DLQ.Replay)
	}
}

// Shutdown gracefully drains in-flight requests before closing the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
