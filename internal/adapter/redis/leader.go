package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	pruneLeaderKey = "wallpaper:pruner:leader"
	leaderLockTTL  = 30 * time.Second
)

var ErrLeadershipLost = errors.New("leadership lost")

// releaseScript deletes the lock only while it still holds our instance ID.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaderElector elects one instance to run snapshot pruning, using SET NX with a TTL.
// A holder keeps leadership by calling TryAcquire again before the TTL runs out.
type LeaderElector struct {
	rdb        *goredis.Client
	instanceID string
	key        string
	ttl        time.Duration
}

// NewLeaderElector creates an elector. instanceID must be unique per process.
func NewLeaderElector(rdb *goredis.Client, instanceID string) *LeaderElector {
	return &LeaderElector{
		rdb:        rdb,
		instanceID: instanceID,
		key:        pruneLeaderKey,
		ttl:        leaderLockTTL,
	}
}

// TryAcquire reports whether this instance is the leader, renewing the lease if it already was.
func (l *LeaderElector) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lock: %w", err)
	}
	if ok {
		return true, nil
	}

	if err := l.renew(ctx); err != nil {
		if errors.Is(err, ErrLeadershipLost) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *LeaderElector) renew(ctx context.Context) error {
	current, err := l.rdb.Get(ctx, l.key).Result()
	if errors.Is(err, goredis.Nil) {
		return ErrLeadershipLost
	}
	if err != nil {
		return fmt.Errorf("failed to read leader lock: %w", err)
	}
	if current != l.instanceID {
		return ErrLeadershipLost
	}

	ok, err := l.rdb.Expire(ctx, l.key, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to renew leader lock: %w", err)
	}
	if !ok {
		return ErrLeadershipLost
	}
	return nil
}

// Release gives up leadership if this instance holds it.
func (l *LeaderElector) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release leader lock: %w", err)
	}
	return nil
}
