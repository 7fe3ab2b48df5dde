package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/planetpulse/internal/adapter/metrics"
	wsstream "github.com/pscheid92/planetpulse/internal/adapter/websocket"
	"github.com/pscheid92/planetpulse/internal/app"
	"github.com/pscheid92/planetpulse/internal/broadcast"
	"github.com/pscheid92/planetpulse/internal/convert"
	"github.com/pscheid92/planetpulse/internal/domain"
	"github.com/pscheid92/planetpulse/internal/platform/config"
)

type planetService interface {
	CreatePlanet(ctx context.Context, req app.CreatePlanetRequest) (*domain.Planet, error)
	ListPlanetsWire(ctx context.Context) ([]*convert.Planet, error)
	GetPlanetWire(ctx context.Context, id int64) (*convert.Planet, error)
	GetPlanetImage(ctx context.Context, id int64) ([]byte, error)
	DeletePlanet(ctx context.Context, id int64) error
}

type clientRegistry interface {
	Register(sink domain.Sink) broadcast.ClientID
	Deregister(id broadcast.ClientID)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	planets planetService
	clients clientRegistry
	limits  *broadcast.ConnectionLimits

	upgrader websocket.Upgrader
	clock    clockwork.Clock

	registry      *prometheus.Registry
	httpMetrics   *metrics.HTTPMetrics
	streamMetrics *metrics.StreamMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, planets planetService, clients clientRegistry, reg *prometheus.Registry, streamMetrics *metrics.StreamMetrics, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:    e,
		config:  cfg,
		planets: planets,
		clients: clients,
		limits:  broadcast.NewConnectionLimits(int64(cfg.MaxStreamConnections), cfg.MaxStreamConnectionsPerIP),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     wsstream.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
		},
		clock:         clockwork.NewRealClock(),
		registry:      reg,
		httpMetrics:   metrics.NewHTTPMetrics(reg),
		streamMetrics: streamMetrics,
		healthChecks:  healthChecks,
		startTime:     time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
