package usecases_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aitorlarra/trailmeet/internal/core/usecases"
)

func TestPresenceRefresher_ImmediateFirstRefresh(t *testing.T) {
	refreshed := make(chan struct{}, 1)
	r := usecases.NewPresenceRefresher(time.Hour, func(ctx context.Context) error {
		select {
		case refreshed <- struct{}{}:
		default:
		}
		return nil
	}, nil)

	r.Start(context.Background())
	defer r.Stop()

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("first refresh did not fire immediately")
	}
}

func TestPresenceRefresher_PeriodicRefresh(t *testing.T) {
	var count atomic.Int32
	r := usecases.NewPresenceRefresher(10*time.Millisecond, func(ctx context.Context) error {
		count.Add(1)
		return nil
	}, nil)

	r.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	r.Stop()
	r.Wait()

	if got := count.Load(); got < 3 {
		t.Errorf("expected several refreshes over 100ms at a 10ms interval, got %d", got)
	}
}

func TestPresenceRefresher_StopDuringWait(t *testing.T) {
	var count atomic.Int32
	r := usecases.NewPresenceRefresher(time.Hour, func(ctx context.Context) error {
		count.Add(1)
		return nil
	}, nil)

	r.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for count.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first refresh never fired")
		}
		time.Sleep(time.Millisecond)
	}

	r.Stop()
	r.Wait()

	if got := count.Load(); got != 1 {
		t.Errorf("expected exactly one refresh before stop, got %d", got)
	}
}

func TestPresenceRefresher_RestartCancelsPredecessor(t *testing.T) {
	var count atomic.Int32
	r := usecases.NewPresenceRefresher(10*time.Millisecond, func(ctx context.Context) error {
		count.Add(1)
		return nil
	}, nil)

	r.Start(context.Background())
	r.Start(context.Background()) // supersedes the first loop

	time.Sleep(100 * time.Millisecond)
	r.Stop()
	r.Wait()

	after := count.Load()
	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != after {
		t.Errorf("refreshes continued after stop: %d then %d", after, got)
	}
}

func TestPresenceRefresher_StopIdempotent(t *testing.T) {
	r := usecases.NewPresenceRefresher(time.Hour, func(ctx context.Context) error {
		return nil
	}, nil)

	r.Start(context.Background())
	r.Stop()
	r.Stop()
	r.Wait()
}

func TestPresenceRefresher_RefreshErrorKeepsLooping(t *testing.T) {
	var count atomic.Int32
	r := usecases.NewPresenceRefresher(10*time.Millisecond, func(ctx context.Context) error {
		count.Add(1)
		return context.DeadlineExceeded
	}, nil)

	r.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	r.Stop()
	r.Wait()

	if got := count.Load(); got < 2 {
		t.Errorf("a failing refresh must not stop the loop, got %d refreshes", got)
	}
}
