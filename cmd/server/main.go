package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/wallpaperpicker/internal/adapter/catalog"
	"github.com/pscheid92/wallpaperpicker/internal/adapter/httpserver"
	"github.com/pscheid92/wallpaperpicker/internal/adapter/memory"
	"github.com/pscheid92/wallpaperpicker/internal/adapter/metrics"
	"github.com/pscheid92/wallpaperpicker/internal/adapter/postgres"
	"github.com/pscheid92/wallpaperpicker/internal/adapter/redis"
	"github.com/pscheid92/wallpaperpicker/internal/app"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/platform/config"
	"github.com/pscheid92/wallpaperpicker/internal/platform/logging"
	"github.com/pscheid92/wallpaperpicker/internal/platform/retry"
	"github.com/pscheid92/wallpaperpicker/internal/platform/version"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

var connectPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Connection attempt failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

type observability struct {
	registry  *prometheus.Registry
	http      *metrics.HTTPMetrics
	selection *metrics.SelectionMetrics
	stream    *metrics.StreamMetrics
	redis     *metrics.RedisMetrics
	db        *metrics.DBMetrics
	thumbnail *metrics.ThumbnailMetrics
}

func setupMetrics() observability {
	reg := metrics.NewRegistry()
	return observability{
		registry:  reg,
		http:      metrics.NewHTTPMetrics(reg),
		selection: metrics.NewSelectionMetrics(reg),
		stream:    metrics.NewStreamMetrics(reg),
		redis:     metrics.NewRedisMetrics(reg),
		db:        metrics.NewDBMetrics(reg),
		thumbnail: metrics.NewThumbnailMetrics(reg),
	}
}

func runGracefulShutdown(srv *httpserver.Server, pruner *app.SnapshotPruner, leader *redis.LeaderElector, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		pruner.Stop()
		if leader != nil {
			if err := leader.Release(shutdownCtx); err != nil {
				slog.Error("Failed to release pruner leadership", "error", err)
			}
		}
		stopBackground()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := retry.Do(ctx, connectPolicy, retry.Transient, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, m)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupDB(cfg *config.Config, m *metrics.DBMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := retry.Do(ctx, connectPolicy, retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(m))
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

// setupMemoryRepository builds the in-process store from CATALOG_FILE or the demo catalog.
func setupMemoryRepository(cfg *config.Config, clock clockwork.Clock) *memory.WallpaperRepository {
	entries := catalog.Demo()
	if cfg.CatalogFile != "" {
		var err error
		entries, err = catalog.Load(cfg.CatalogFile)
		if err != nil {
			slog.Error("Failed to load catalog", "path", cfg.CatalogFile, "error", err)
			os.Exit(1)
		}
	}

	initial := map[domain.Destination]string{}
	if cfg.DefaultWallpaperID != "" {
		for _, d := range domain.Destinations() {
			initial[d] = cfg.DefaultWallpaperID
		}
	}

	repo, err := memory.NewWallpaperRepository(catalog.Models(entries), initial,
		memory.WithMaxRecent(cfg.MaxRecentWallpapers),
		memory.WithApplyDelay(clock, cfg.ApplyDelay),
	)
	if err != nil {
		slog.Error("Failed to create in-memory wallpaper store", "error", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.Thumbnail != nil {
			repo.PutWallpaper(e.Model, e.Thumbnail)
		}
	}

	slog.Info("Using in-memory wallpaper store", "wallpapers", len(entries))
	return repo
}

func setupRedisRepository(ctx context.Context, cfg *config.Config, client *goredis.Client, m *metrics.ThumbnailMetrics) *redis.WallpaperRepository {
	initCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	repo, err := redis.NewWallpaperRepository(initCtx, client, cfg.DefaultWallpaperID,
		redis.WithMaxRecent(cfg.MaxRecentWallpapers),
		redis.WithThumbnailMetrics(m),
	)
	if err != nil {
		slog.Error("Failed to create Redis wallpaper store", "error", err)
		os.Exit(1)
	}
	go repo.Start(ctx)
	return repo
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	obs := setupMetrics()

	// Background work (change feed) outlives requests and stops after the server.
	background, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var (
		repository   domain.WallpaperRepository
		redisClient  *goredis.Client
		leader       *redis.LeaderElector
		healthChecks []httpserver.HealthCheck
	)
	if cfg.MemoryMode() {
		repository = setupMemoryRepository(cfg, clock)
	} else {
		redisClient = setupRedis(cfg, obs.redis)
		defer func() { _ = redisClient.Close() }()

		repository = setupRedisRepository(background, cfg, redisClient, obs.thumbnail)
		leader = redis.NewLeaderElector(redisClient, instanceID())
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	var store domain.SnapshotStore
	if cfg.DatabaseURL == "" {
		slog.Info("Using in-memory snapshot store")
		store = memory.NewSnapshotStore()
	} else {
		pool := setupDB(cfg, obs.db)
		defer pool.Close()

		store = postgres.NewSnapshotStore(pool)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "postgres",
			Check: pool.Ping,
		})
	}

	// The restorer needs the interactor and the interactor records through the restorer,
	// so the interactor only gets a provider and the restorer is bound afterwards.
	restorer := app.NewSnapshotRestorer(store, clock)
	interactor := app.NewWallpaperInteractor(repository, restorer.Provider())
	restorer.Bind(interactor)

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), connectTimeout)
	if err := restorer.Setup(setupCtx); err != nil {
		cancelSetup()
		slog.Error("Failed to record baseline snapshots", "error", err)
		os.Exit(1)
	}
	cancelSetup()

	// Pass nil explicitly to avoid a typed-nil leader lock.
	var pruner *app.SnapshotPruner
	prunedCounter := app.WithPrunedCounter(obs.selection.SnapshotsPruned)
	if leader != nil {
		pruner = app.NewSnapshotPruner(store, cfg.SnapshotKeep, leader, clock, cfg.SnapshotPruneInterval, prunedCounter)
	} else {
		pruner = app.NewSnapshotPruner(store, cfg.SnapshotKeep, nil, clock, cfg.SnapshotPruneInterval, prunedCounter)
	}
	pruner.Start()

	srv := httpserver.NewServer(cfg, interactor, restorer, httpserver.Observability{
		MetricsHandler: metrics.Handler(obs.registry),
		HTTP:           obs.http,
		Selection:      obs.selection,
		Stream:         obs.stream,
	}, healthChecks, clock)

	done := runGracefulShutdown(srv, pruner, leader, stopBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
