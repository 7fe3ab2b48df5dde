package httpserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/planetpulse/internal/adapter/metrics"
	"github.com/pscheid92/planetpulse/internal/app"
	"github.com/pscheid92/planetpulse/internal/broadcast"
	"github.com/pscheid92/planetpulse/internal/convert"
	"github.com/pscheid92/planetpulse/internal/domain"
	"github.com/pscheid92/planetpulse/internal/platform/config"
)

// --- Mock implementations ---

type mockPlanetService struct {
	createPlanetFn    func(ctx context.Context, req app.CreatePlanetRequest) (*domain.Planet, error)
	listPlanetsWireFn func(ctx context.Context) ([]*convert.Planet, error)
	getPlanetWireFn   func(ctx context.Context, id int64) (*convert.Planet, error)
	getPlanetImageFn  func(ctx context.Context, id int64) ([]byte, error)
	deletePlanetFn    func(ctx context.Context, id int64) error
}

func (m *mockPlanetService) CreatePlanet(ctx context.Context, req app.CreatePlanetRequest) (*domain.Planet, error) {
	if m.createPlanetFn != nil {
		return m.createPlanetFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockPlanetService) ListPlanetsWire(ctx context.Context) ([]*convert.Planet, error) {
	if m.listPlanetsWireFn != nil {
		return m.listPlanetsWireFn(ctx)
	}
	return []*convert.Planet{}, nil
}

func (m *mockPlanetService) GetPlanetWire(ctx context.Context, id int64) (*convert.Planet, error) {
	if m.getPlanetWireFn != nil {
		return m.getPlanetWireFn(ctx, id)
	}
	return nil, domain.ErrPlanetNotFound
}

func (m *mockPlanetService) GetPlanetImage(ctx context.Context, id int64) ([]byte, error) {
	if m.getPlanetImageFn != nil {
		return m.getPlanetImageFn(ctx, id)
	}
	return nil, domain.ErrPlanetNotFound
}

func (m *mockPlanetService) DeletePlanet(ctx context.Context, id int64) error {
	if m.deletePlanetFn != nil {
		return m.deletePlanetFn(ctx, id)
	}
	return nil
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                    "development",
		Port:                      "0",
		MaxStreamConnections:      100,
		MaxStreamConnectionsPerIP: 10,
		SinkBufferSize:            8,
		SSEHeartbeatInterval:      time.Hour,
		CreateRatePerSecond:       100,
		CreateRateBurst:           100,
	}
}

func newTestServer(t *testing.T, planets planetService, opts ...func(*config.Config)) (*Server, *broadcast.Registry) {
	t.Helper()

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	reg := prometheus.NewRegistry()
	streamMetrics := metrics.NewStreamMetrics(reg)
	clients := broadcast.NewRegistry(streamMetrics)

	srv := NewServer(cfg, planets, clients, reg, streamMetrics, nil)
	return srv, clients
}

func withStreamLimits(global, perIP int) func(*config.Config) {
	return func(cfg *config.Config) {
		cfg.MaxStreamConnections = global
		cfg.MaxStreamConnectionsPerIP = perIP
	}
}

func withCreateRate(perSecond float64, burst int) func(*config.Config) {
	return func(cfg *config.Config) {
		cfg.CreateRatePerSecond = perSecond
		cfg.CreateRateBurst = burst
	}
}

func withHealthChecks(srv *Server, checks ...HealthCheck) *Server {
	srv.healthChecks = checks
	return srv
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware(nil)(handler)(c)
}
