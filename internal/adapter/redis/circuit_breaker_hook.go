package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/wallpaperpicker/internal/adapter/metrics"
)

const fallbackTTL = 5 * time.Minute

// CircuitBreakerHook stops sending commands to Redis once it keeps failing.
//
// While the breaker is open, GET commands for keys that were read successfully within
// fallbackTTL are answered from memory; everything else fails with circuitbreaker.ErrOpen.
type CircuitBreakerHook struct {
	cb    circuitbreaker.CircuitBreaker[any]
	clock clockwork.Clock

	mu       sync.RWMutex
	fallback map[string]cachedValue
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

type cachedValue struct {
	data     string
	storedAt time.Time
}

// NewCircuitBreakerHook opens at a 60% failure rate over at least 5 commands in 10s,
// probes again after 30s, and closes on the first successful probe.
func NewCircuitBreakerHook(m *metrics.RedisMetrics, clock clockwork.Clock) *CircuitBreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "redis",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.BreakerTransitions.WithLabelValues(e.NewState.String()).Inc()
				m.BreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()

	return &CircuitBreakerHook{
		cb:       cb,
		clock:    clock,
		fallback: make(map[string]cachedValue),
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("redis dial: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.cb.RecordError(err)
			return nil, err
		}
		h.cb.RecordSuccess()
		return conn, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return h.serveFallback(cmd)
		}

		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, goredis.Nil) {
			h.cb.RecordError(err)
			return err
		}

		h.cb.RecordSuccess()
		h.remember(cmd)
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis pipeline: %w", circuitbreaker.ErrOpen)
		}

		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, goredis.Nil) {
			h.cb.RecordError(err)
			return err
		}
		h.cb.RecordSuccess()
		return err
	}
}

// State reports the breaker state.
func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}

func (h *CircuitBreakerHook) serveFallback(cmd goredis.Cmder) error {
	name := strings.ToLower(cmd.Name())
	if c, ok := cmd.(*goredis.StringCmd); ok && name == "get" {
		if value, found := h.lookup(cmdKey(cmd)); found {
			slog.Debug("Circuit breaker open, serving GET from fallback", "key", cmdKey(cmd))
			c.SetVal(value)
			return nil
		}
	}
	return fmt.Errorf("redis %s: %w", name, circuitbreaker.ErrOpen)
}

func (h *CircuitBreakerHook) remember(cmd goredis.Cmder) {
	c, ok := cmd.(*goredis.StringCmd)
	if !ok || strings.ToLower(cmd.Name()) != "get" || c.Err() != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.fallback[cmdKey(cmd)] = cachedValue{data: c.Val(), storedAt: h.clock.Now()}
}

func (h *CircuitBreakerHook) lookup(key string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cached, ok := h.fallback[key]
	if !ok || h.clock.Since(cached.storedAt) > fallbackTTL {
		return "", false
	}
	return cached.data, true
}

func cmdKey(cmd goredis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return ""
	}
	return fmt.Sprint(args[1])
}
