package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/planetpulse/internal/adapter/assets"
	"github.com/pscheid92/planetpulse/internal/adapter/httpserver"
	"github.com/pscheid92/planetpulse/internal/adapter/metrics"
	"github.com/pscheid92/planetpulse/internal/adapter/postgres"
	"github.com/pscheid92/planetpulse/internal/adapter/redis"
	"github.com/pscheid92/planetpulse/internal/app"
	"github.com/pscheid92/planetpulse/internal/broadcast"
	"github.com/pscheid92/planetpulse/internal/domain"
	"github.com/pscheid92/planetpulse/internal/platform/config"
	"github.com/pscheid92/planetpulse/internal/platform/logging"
	"github.com/pscheid92/planetpulse/internal/platform/retry"
	"github.com/pscheid92/planetpulse/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

const (
	shutdownTimeout     = 10 * time.Second
	circuitBreakerDelay = 10 * time.Second
)

type appMetrics struct {
	registry *prometheus.Registry
	db       *metrics.DBMetrics
	redis    *metrics.RedisMetrics
	cache    *metrics.CacheMetrics
	relay    *metrics.RelayMetrics
	stream   *metrics.StreamMetrics
}

func setupMetrics() appMetrics {
	reg := metrics.NewRegistry()
	return appMetrics{
		registry: reg,
		db:       metrics.NewDBMetrics(reg),
		redis:    metrics.NewRedisMetrics(reg),
		cache:    metrics.NewCacheMetrics(reg),
		relay:    metrics.NewRelayMetrics(reg),
		stream:   metrics.NewStreamMetrics(reg),
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func startupPolicy(dependency string) retry.Policy {
	p := retry.Startup
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency not ready, retrying", "dependency", dependency, "attempt", attempt, "backoff", backoff, "error", err)
	}
	return p
}

func setupDB(ctx context.Context, cfg *config.Config, m *metrics.DBMetrics) *pgxpool.Pool {
	pool, err := retry.Do(ctx, startupPolicy("postgres"), retry.UnlessCanceled, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, m)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	hooks := []goredis.Hook{
		redis.NewMetricsHook(m),
		redis.NewCircuitBreakerHook(circuitBreakerDelay, m),
	}
	client, err := retry.Do(ctx, startupPolicy("redis"), retry.UnlessCanceled, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, hooks...)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func subscribe(ctx context.Context, cfg *config.Config, client *goredis.Client, m *metrics.RelayMetrics) *redis.Subscription {
	policy := redis.DecodeSkip
	if cfg.RelayDecodePolicy == config.DecodePolicyFail {
		policy = redis.DecodeFail
	}

	sub, err := redis.NewSubscriber(client, policy, m).Subscribe(ctx, cfg.PlanetsChannel)
	if errors.Is(err, domain.ErrConnection) {
		slog.Error("Cannot subscribe to planet channel", "channel", cfg.PlanetsChannel, "error", err)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Subscription failed", "channel", cfg.PlanetsChannel, "error", err)
		os.Exit(1)
	}
	return sub
}

func healthChecks(pool *pgxpool.Pool, client *goredis.Client, relay *app.Relay) []httpserver.HealthCheck {
	return []httpserver.HealthCheck{
		{Name: "redis", Check: func(ctx context.Context) error { return client.Ping(ctx).Err() }},
		{Name: "postgres", Check: pool.Ping},
		{Name: "relay", Check: func(context.Context) error {
			if !relay.Running() {
				return errors.New("relay not running")
			}
			return nil
		}},
	}
}

// runRelay forwards bus notifications until ctx ends. A relay failure exits the process.
func runRelay(ctx context.Context, relay *app.Relay) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := relay.Run(ctx); err != nil {
			slog.Error("Relay failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Relay stopped")
	}()
	return done
}

func runGracefulShutdown(ctx context.Context, srv *httpserver.Server, clients *broadcast.Registry, relayDone <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		<-relayDone

		// Open streams only end when their sink closes; Shutdown would wait on them.
		closed := clients.CloseAll()
		slog.Info("Closed stream clients", "count", closed)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Version, "channel", cfg.PlanetsChannel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := setupMetrics()

	pool := setupDB(ctx, cfg, m.db)
	defer pool.Close()

	redisClient := setupRedis(ctx, cfg, m.redis)
	defer func() { _ = redisClient.Close() }()

	sub := subscribe(ctx, cfg, redisClient, m.relay)
	defer func() { _ = sub.Close() }()

	clients := broadcast.NewRegistry(m.stream)
	relay := app.NewRelay(sub, clients, m.relay)
	relayDone := runRelay(ctx, relay)

	planetRepo := postgres.NewPlanetRepo(pool)
	planetCache := redis.NewPlanetCache(redisClient, planetRepo, cfg.PlanetCacheTTL, m.cache)
	publisher := redis.NewPublisher(redisClient, cfg.PlanetsChannel)
	planetSvc := app.NewPlanetService(planetRepo, planetCache, publisher, assets.NewStore())

	srv := httpserver.NewServer(cfg, planetSvc, clients, m.registry, m.stream, healthChecks(pool, redisClient, relay))

	done := runGracefulShutdown(ctx, srv, clients, relayDone)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
