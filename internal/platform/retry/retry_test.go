package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/wallpaperpicker/internal/platform/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Millisecond,
	SlowBackoff:    5 * time.Millisecond,
}

func failTimes(n int, val int) (retry.Operation[int], *int) {
	calls := 0
	return func(context.Context) (int, error) {
		calls++
		if calls <= n {
			return 0, errors.New("transient")
		}
		return val, nil
	}, &calls
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	op, calls := failTimes(2, 42)

	val, err := retry.Do(context.Background(), fastPolicy, retry.Transient, op)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if val != 42 || *calls != 3 {
		t.Fatalf("expected 42 after 3 calls, got %d after %d", val, *calls)
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysStop, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, permanent
	})

	var permErr *retry.PermanentError
	if !errors.As(err, &permErr) || !errors.Is(err, permanent) {
		t.Fatalf("expected PermanentError wrapping permanent, got %T: %v", err, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustedRetries(t *testing.T) {
	op, calls := failTimes(10, 0)

	_, err := retry.Do(context.Background(), fastPolicy, retry.Transient, op)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if *calls != fastPolicy.MaxAttempts {
		t.Fatalf("expected %d calls, got %d", fastPolicy.MaxAttempts, *calls)
	}
}

func TestDo_InvalidPolicy(t *testing.T) {
	op, calls := failTimes(0, 1)

	if _, err := retry.Do(context.Background(), retry.Policy{}, retry.Transient, op); err == nil {
		t.Fatal("expected error for zero MaxAttempts")
	}
	if *calls != 0 {
		t.Fatalf("expected no calls, got %d", *calls)
	}
}

func TestDo_BackoffDoublesUpToMax(t *testing.T) {
	var observed []time.Duration
	p := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     3 * time.Millisecond,
		OnRetry:        func(_ int, _ error, d time.Duration) { observed = append(observed, d) },
	}
	op, _ := failTimes(10, 0)

	_, _ = retry.Do(context.Background(), p, retry.Transient, op)

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond, 3 * time.Millisecond}
	if len(observed) != len(want) {
		t.Fatalf("expected %d retries, got %v", len(want), observed)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Fatalf("retry %d: expected %v, got %v", i+1, want[i], observed[i])
		}
	}
}

func TestDo_SlowBackoff(t *testing.T) {
	var observed time.Duration
	p := fastPolicy
	p.MaxAttempts = 2
	p.OnRetry = func(_ int, _ error, d time.Duration) { observed = d }

	op, _ := failTimes(10, 0)
	_, _ = retry.Do(context.Background(), p, func(error) retry.Action { return retry.Slow }, op)

	if observed != p.SlowBackoff {
		t.Fatalf("expected slow backoff of %v, got %v", p.SlowBackoff, observed)
	}
}

func TestDo_WaitsOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := retry.Policy{MaxAttempts: 2, InitialBackoff: time.Minute, Clock: clock}
	op, calls := failTimes(1, 7)

	done := make(chan int, 1)
	go func() {
		val, _ := retry.Do(context.Background(), p, retry.Transient, op)
		done <- val
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("retry never waited: %v", err)
	}
	clock.Advance(time.Minute)

	if val := <-done; val != 7 || *calls != 2 {
		t.Fatalf("expected 7 after 2 calls, got %d after %d", val, *calls)
	}
}

func TestDo_ContextCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retry.Policy{MaxAttempts: 3, InitialBackoff: 10 * time.Second}

	calls := 0
	_, err := retry.Do(ctx, p, retry.Transient, func(context.Context) (struct{}, error) {
		calls++
		cancel()
		return struct{}{}, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancel, got %d", calls)
	}
}

func TestDoVoid_PropagatesError(t *testing.T) {
	underlying := errors.New("fail")
	err := retry.DoVoid(context.Background(), fastPolicy, alwaysStop, func(context.Context) error {
		return underlying
	})
	if !errors.Is(err, underlying) {
		t.Fatalf("expected wrapped underlying error, got %v", err)
	}
}

func alwaysStop(error) retry.Action { return retry.Stop }
