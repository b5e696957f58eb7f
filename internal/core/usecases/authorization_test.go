package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/ports"
	"github.com/aitorlarra/trailmeet/internal/core/usecases"
)

// --- Mock PositionSource ---

type mockPositionSource struct {
	mu sync.Mutex

	cb       ports.PositionCallbacks
	requests []domain.AuthorizationLevel

	requestAuthFn func(level domain.AuthorizationLevel) error

	foregroundCalls int
	backgroundCalls int
	stopCalls       int
}

func (m *mockPositionSource) Subscribe(cb ports.PositionCallbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cb = cb
}

func (m *mockPositionSource) RequestAuthorization(level domain.AuthorizationLevel) error {
	m.mu.Lock()
	m.requests = append(m.requests, level)
	fn := m.requestAuthFn
	m.mu.Unlock()
	if fn != nil {
		return fn(level)
	}
	return nil
}

func (m *mockPositionSource) StartForeground() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foregroundCalls++
	return nil
}

func (m *mockPositionSource) StartBackground() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backgroundCalls++
	return nil
}

func (m *mockPositionSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	return nil
}

func (m *mockPositionSource) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockPositionSource) counts() (fg, bg, stop int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.foregroundCalls, m.backgroundCalls, m.stopCalls
}

// --- Tests ---

func TestAuthorizationCoordinator_AlreadyDecided(t *testing.T) {
	src := &mockPositionSource{}
	coord := usecases.NewAuthorizationCoordinator(src, nil)

	coord.HandleAuthorizationChange(domain.AuthWhenInUse)

	status, err := coord.Request(context.Background(), domain.LevelWhenInUse)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.AuthWhenInUse {
		t.Errorf("expected when_in_use, got %s", status)
	}
	if src.requestCount() != 0 {
		t.Errorf("decided state must not re-prompt, got %d requests", src.requestCount())
	}
}

func TestAuthorizationCoordinator_ConcurrentCallersShareOnePrompt(t *testing.T) {
	src := &mockPositionSource{}
	coord := usecases.NewAuthorizationCoordinator(src, nil)

	results := make(chan domain.AuthorizationState, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := coord.Request(context.Background(), domain.LevelWhenInUse)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results <- status
		}()
	}

	// Wait for the single device prompt to be issued
	deadline := time.Now().Add(time.Second)
	for src.requestCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no device prompt issued")
		}
		time.Sleep(time.Millisecond)
	}

	coord.HandleAuthorizationChange(domain.AuthAlways)
	wg.Wait()
	close(results)

	for status := range results {
		if status != domain.AuthAlways {
			t.Errorf("expected always, got %s", status)
		}
	}
	if src.requestCount() != 1 {
		t.Errorf("expected exactly one device prompt, got %d", src.requestCount())
	}
}

func TestAuthorizationCoordinator_DeniedSkipsAlwaysPrompt(t *testing.T) {
	src := &mockPositionSource{}
	coord := usecases.NewAuthorizationCoordinator(src, nil)

	coord.HandleAuthorizationChange(domain.AuthDenied)

	status, err := coord.Request(context.Background(), domain.LevelAlways)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.AuthDenied {
		t.Errorf("expected denied, got %s", status)
	}
	if src.requestCount() != 0 {
		t.Errorf("denied device must not be re-prompted, got %d requests", src.requestCount())
	}
}

func TestAuthorizationCoordinator_UpgradeFromWhenInUse(t *testing.T) {
	src := &mockPositionSource{}
	coord := usecases.NewAuthorizationCoordinator(src, nil)

	coord.HandleAuthorizationChange(domain.AuthWhenInUse)

	done := make(chan domain.AuthorizationState, 1)
	go func() {
		status, _ := coord.Request(context.Background(), domain.LevelAlways)
		done <- status
	}()

	deadline := time.Now().Add(time.Second)
	for src.requestCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("upgrade prompt was not issued")
		}
		time.Sleep(time.Millisecond)
	}

	coord.HandleAuthorizationChange(domain.AuthAlways)

	if status := <-done; status != domain.AuthAlways {
		t.Errorf("expected always after upgrade, got %s", status)
	}
	_, bg, _ := src.counts()
	if bg != 1 {
		t.Errorf("always grant should start background delivery, got %d calls", bg)
	}
}

func TestAuthorizationCoordinator_StreamReconfiguration(t *testing.T) {
	src := &mockPositionSource{}
	coord := usecases.NewAuthorizationCoordinator(src, nil)

	coord.HandleAuthorizationChange(domain.AuthWhenInUse)
	coord.HandleAuthorizationChange(domain.AuthAlways)
	coord.HandleAuthorizationChange(domain.AuthDenied)

	fg, bg, stop := src.counts()
	if fg != 1 || bg != 1 || stop != 1 {
		t.Errorf("expected one call each (fg/bg/stop), got %d/%d/%d", fg, bg, stop)
	}
}

func TestAuthorizationCoordinator_UnchangedReportResolvesWaiter(t *testing.T) {
	src := &mockPositionSource{}
	coord := usecases.NewAuthorizationCoordinator(src, nil)

	done := make(chan domain.AuthorizationState, 1)
	go func() {
		status, _ := coord.Request(context.Background(), domain.LevelWhenInUse)
		done <- status
	}()

	deadline := time.Now().Add(time.Second)
	for src.requestCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("prompt was not issued")
		}
		time.Sleep(time.Millisecond)
	}

	// The device declined to show a prompt: the report carries the
	// unchanged state, and the waiter still resolves.
	coord.HandleAuthorizationChange(domain.AuthNotDetermined)

	select {
	case status := <-done:
		if status != domain.AuthNotDetermined {
			t.Errorf("expected not_determined, got %s", status)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never resolved on unchanged report")
	}
}

func TestAuthorizationCoordinator_ContextCancellation(t *testing.T) {
	src := &mockPositionSource{}
	coord := usecases.NewAuthorizationCoordinator(src, nil)

	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, err := coord.Request(ctx, domain.LevelWhenInUse)
		errs <- err
	}()

	deadline := time.Now().Add(time.Second)
	for src.requestCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("prompt was not issued")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-errs; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	// The abandoned waiter is still resolved by the device report and must
	// not panic or leak into later requests.
	coord.HandleAuthorizationChange(domain.AuthWhenInUse)

	status, err := coord.Request(context.Background(), domain.LevelWhenInUse)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.AuthWhenInUse {
		t.Errorf("expected when_in_use, got %s", status)
	}
}
