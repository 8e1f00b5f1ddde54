package api

import (
	"context"
	"net/http"
	"time"

	"github.com/SteveArevalo/CS499-CapStone/config"
	"github.com/SteveArevalo/CS499-CapStone/internal/api/handlers"
	"github.com/SteveArevalo/CS499-CapStone/internal/services"
	"github.com/SteveArevalo/CS499-CapStone/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	config     config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	service    *services.ShelterService
	tracer     tracing.Tracer
	checks     map[string]handlers.HealthCheck
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, service *services.ShelterService, tracer tracing.Tracer, checks map[string]handlers.HealthCheck) *Server {
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	s := &Server{
		config:  cfg,
		service: service,
		tracer:  tracer,
		checks:  checks,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Timeout,
	}
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		LoggingMiddleware(),
		TracingMiddleware(s.tracer.Application()),
	)

	metricsHandler := handlers.NewMetricsHandler(s.service.Metrics(), s.checks)
	if s.config.MetricsEnabled {
		metricsHandler.RegisterRoutes(router)
	} else {
		router.GET("/health", metricsHandler.HandleGetHealthCheck)
	}

	v1 := router.Group("/api/v1", RateLimitMiddleware(s.config.RateLimit, s.config.RateBurst))
	handlers.NewAnimalHandler(s.service).RegisterRoutes(v1)
	handlers.NewReportHandler(s.service).RegisterRoutes(v1)

	return router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
