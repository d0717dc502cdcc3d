package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for emission")
		var zero T
		return zero
	}
}

func TestMutableStateFlow_LateCollectorGetsLatestValue(t *testing.T) {
	s := NewMutableStateFlow("A")
	s.Set("B")

	v, err := First(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "B", v)
	assert.Equal(t, "B", s.Value())
}

func TestMutableStateFlow_BroadcastsChanges(t *testing.T) {
	s := NewMutableStateFlow("A")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- s.Collect(ctx, func(v string) error {
			got <- v
			return nil
		})
	}()

	assert.Equal(t, "A", receive(t, got))
	s.Set("B")
	assert.Equal(t, "B", receive(t, got))
	s.Set("C")
	assert.Equal(t, "C", receive(t, got))

	cancel()
	assert.ErrorIs(t, receive(t, done), context.Canceled)
	assert.Eventually(t, func() bool { return s.Subscribers() == 0 }, waitTimeout, 10*time.Millisecond)
}

func TestMutableStateFlow_SlowCollectorIsConflated(t *testing.T) {
	s := NewMutableStateFlow(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := make(chan struct{})
	got := make(chan int, 8)
	go func() {
		_ = s.Collect(ctx, func(v int) error {
			got <- v
			if v == 1 {
				<-gate
			}
			return nil
		})
	}()

	assert.Equal(t, 1, receive(t, got))
	s.Set(2)
	s.Set(3)
	s.Set(4)
	close(gate)

	assert.Equal(t, 4, receive(t, got))
}

func TestMutableStateFlow_IndependentCollectors(t *testing.T) {
	s := NewMutableStateFlow("A")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan string, 8)
	second := make(chan string, 8)
	for _, ch := range []chan string{first, second} {
		go func() {
			_ = s.Collect(ctx, func(v string) error {
				ch <- v
				return nil
			})
		}()
	}

	assert.Equal(t, "A", receive(t, first))
	assert.Equal(t, "A", receive(t, second))
	require.Eventually(t, func() bool { return s.Subscribers() == 2 }, waitTimeout, 10*time.Millisecond)

	s.Set("B")
	assert.Equal(t, "B", receive(t, first))
	assert.Equal(t, "B", receive(t, second))
}

func TestMutableStateFlow_Update(t *testing.T) {
	s := NewMutableStateFlow(map[string]string{})

	next := s.Update(func(m map[string]string) map[string]string {
		cp := make(map[string]string, len(m)+1)
		for k, v := range m {
			cp[k] = v
		}
		cp["home"] = "A"
		return cp
	})

	assert.Equal(t, "A", next["home"])
	assert.Equal(t, "A", s.Value()["home"])
}

func TestMutableStateFlow_CollectorErrorStopsCollection(t *testing.T) {
	s := NewMutableStateFlow(0)
	boom := errors.New("collector failed")

	err := s.Collect(context.Background(), func(int) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Subscribers())
}

func TestSetDistinct(t *testing.T) {
	s := NewMutableStateFlow("A")

	assert.False(t, SetDistinct(s, "A"))
	assert.True(t, SetDistinct(s, "B"))
	assert.Equal(t, "B", s.Value())
}
