package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/wallpaperpicker/internal/adapter/metrics"
)

// NewClient connects to Redis and installs the metrics and circuit breaker hooks.
// m may be nil, in which case no metrics are recorded.
func NewClient(ctx context.Context, redisURL string, m *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// Metrics first so they observe breaker rejections too.
	client.AddHook(NewMetricsHook(m))
	client.AddHook(NewCircuitBreakerHook(m, clockwork.NewRealClock()))

	slog.Info("Redis connected", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}
