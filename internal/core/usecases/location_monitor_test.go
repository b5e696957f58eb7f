package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aitorlarra/trailmeet/internal/catalog"
	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/core/usecases"
)

// --- Mock VisitRepository (in-memory, with error hooks) ---

type mockVisitStore struct {
	mu       sync.Mutex
	visited  map[string]map[string]struct{}
	fetchErr error
	markErr  error
	fetched  chan struct{}
}

func newMockVisitStore() *mockVisitStore {
	return &mockVisitStore{
		visited: make(map[string]map[string]struct{}),
		fetched: make(chan struct{}, 16),
	}
}

func (m *mockVisitStore) MarkVisited(ctx context.Context, userID, landmarkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	if m.visited[userID] == nil {
		m.visited[userID] = make(map[string]struct{})
	}
	m.visited[userID][landmarkID] = struct{}{}
	return nil
}

func (m *mockVisitStore) FetchVisited(ctx context.Context, userID string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case m.fetched <- struct{}{}:
	default:
	}

	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make(map[string]struct{}, len(m.visited[userID]))
	for id := range m.visited[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *mockVisitStore) ListVisits(ctx context.Context, userID string, limit int) ([]domain.VisitEvent, error) {
	return nil, nil
}

// --- Mock EventPublisher ---

type mockEventPublisher struct {
	events chan *domain.VisitEvent
}

func newMockEventPublisher() *mockEventPublisher {
	return &mockEventPublisher{events: make(chan *domain.VisitEvent, 16)}
}

func (m *mockEventPublisher) PublishVisitEvent(ctx context.Context, ev *domain.VisitEvent) error {
	m.events <- ev
	return nil
}

func (m *mockEventPublisher) PublishPositionUpdate(ctx context.Context, up *domain.PositionUpdate) error {
	return nil
}

func (m *mockEventPublisher) PublishAuthorizationUpdate(ctx context.Context, up *domain.AuthorizationUpdate) error {
	return nil
}

func (m *mockEventPublisher) PublishAuthorizationPrompt(ctx context.Context, userID string, level domain.AuthorizationLevel) error {
	return nil
}

// --- Helpers ---

func (m *mockPositionSource) deliverAuth(state domain.AuthorizationState) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb != nil {
		cb.OnAuthorizationChange(state)
	}
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Entry{
		{Title: "Viewpoint", Lat: 43.2731, Lon: -2.9282},
		{Title: "Fountain", Lat: 43.2635, Lon: -2.9427},
	}, nil)
}

func waitForState(t *testing.T, m *usecases.LocationMonitor, want usecases.MonitorState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("monitor never reached state %s, still %s", want, m.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func grantingSource(state domain.AuthorizationState) *mockPositionSource {
	src := &mockPositionSource{}
	src.requestAuthFn = func(domain.AuthorizationLevel) error {
		go src.deliverAuth(state)
		return nil
	}
	return src
}

// --- Tests ---

func TestLocationMonitor_VisitPipeline(t *testing.T) {
	src := grantingSource(domain.AuthWhenInUse)
	store := newMockVisitStore()
	pub := newMockEventPublisher()

	mon := usecases.NewLocationMonitor(usecases.MonitorConfig{
		UserID:    "u-1",
		Source:    src,
		Catalog:   testCatalog(),
		Visits:    store,
		Publisher: pub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- mon.Run(ctx) }()

	waitForState(t, mon, usecases.StateMonitoring)

	// Standing at the first landmark
	mon.OnPosition(domain.PositionUpdate{
		UserID:    "u-1",
		Location:  domain.GeoPoint{Lat: 43.2731, Lon: -2.9282},
		Timestamp: time.Now(),
	})

	select {
	case ev := <-pub.events:
		if ev.LandmarkID != "lm-000" {
			t.Errorf("expected visit for lm-000, got %s", ev.LandmarkID)
		}
		if ev.UserID != "u-1" {
			t.Errorf("expected user u-1, got %s", ev.UserID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no visit event published")
	}

	// Lingering at the same landmark must not credit it again
	mon.OnPosition(domain.PositionUpdate{
		UserID:    "u-1",
		Location:  domain.GeoPoint{Lat: 43.2731, Lon: -2.9282},
		Timestamp: time.Now(),
	})

	select {
	case ev := <-pub.events:
		t.Errorf("duplicate visit published: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	if err := <-runErr; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if mon.State() != usecases.StateStopped {
		t.Errorf("expected stopped state, got %s", mon.State())
	}
	if _, _, stop := src.counts(); stop == 0 {
		t.Error("expected position source to be stopped")
	}
}

func TestLocationMonitor_DeniedStops(t *testing.T) {
	src := grantingSource(domain.AuthDenied)
	mon := usecases.NewLocationMonitor(usecases.MonitorConfig{
		UserID:    "u-1",
		Source:    src,
		Catalog:   testCatalog(),
		Visits:    newMockVisitStore(),
		Publisher: newMockEventPublisher(),
	})

	if err := mon.Run(context.Background()); err != nil {
		t.Fatalf("denial is not an error, got %v", err)
	}
	if mon.State() != usecases.StateStopped {
		t.Errorf("expected stopped state, got %s", mon.State())
	}
}

func TestLocationMonitor_AuthorizationWithdrawn(t *testing.T) {
	src := grantingSource(domain.AuthWhenInUse)
	mon := usecases.NewLocationMonitor(usecases.MonitorConfig{
		UserID:    "u-1",
		Source:    src,
		Catalog:   testCatalog(),
		Visits:    newMockVisitStore(),
		Publisher: newMockEventPublisher(),
	})

	runErr := make(chan error, 1)
	go func() { runErr <- mon.Run(context.Background()) }()

	waitForState(t, mon, usecases.StateMonitoring)

	// The user revokes permission in system settings
	src.deliverAuth(domain.AuthDenied)

	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("withdrawal is not an error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop on withdrawal")
	}
	if mon.State() != usecases.StateStopped {
		t.Errorf("expected stopped state, got %s", mon.State())
	}
}

func TestLocationMonitor_FetchFailureFailsClosed(t *testing.T) {
	src := grantingSource(domain.AuthWhenInUse)
	store := newMockVisitStore()
	store.fetchErr = context.DeadlineExceeded
	pub := newMockEventPublisher()

	mon := usecases.NewLocationMonitor(usecases.MonitorConfig{
		UserID:    "u-1",
		Source:    src,
		Catalog:   testCatalog(),
		Visits:    store,
		Publisher: pub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mon.Run(ctx) }()

	waitForState(t, mon, usecases.StateMonitoring)

	mon.OnPosition(domain.PositionUpdate{
		UserID:   "u-1",
		Location: domain.GeoPoint{Lat: 43.2731, Lon: -2.9282},
	})

	// Wait until the sample hit the store, then make sure nothing leaked out
	select {
	case <-store.fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("sample never reached the visit store")
	}
	select {
	case ev := <-pub.events:
		t.Errorf("event published despite unreadable visited-set: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLocationMonitor_MarkFailureSuppressesEvent(t *testing.T) {
	src := grantingSource(domain.AuthWhenInUse)
	store := newMockVisitStore()
	store.markErr = context.DeadlineExceeded
	pub := newMockEventPublisher()

	mon := usecases.NewLocationMonitor(usecases.MonitorConfig{
		UserID:    "u-1",
		Source:    src,
		Catalog:   testCatalog(),
		Visits:    store,
		Publisher: pub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mon.Run(ctx) }()

	waitForState(t, mon, usecases.StateMonitoring)

	mon.OnPosition(domain.PositionUpdate{
		UserID:   "u-1",
		Location: domain.GeoPoint{Lat: 43.2731, Lon: -2.9282},
	})

	select {
	case <-store.fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("sample never reached the visit store")
	}
	select {
	case ev := <-pub.events:
		t.Errorf("event published despite failed durable mark: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLocationMonitor_OutOfRangePositionIgnored(t *testing.T) {
	src := grantingSource(domain.AuthWhenInUse)
	store := newMockVisitStore()
	pub := newMockEventPublisher()

	mon := usecases.NewLocationMonitor(usecases.MonitorConfig{
		UserID:    "u-1",
		Source:    src,
		Catalog:   testCatalog(),
		Visits:    store,
		Publisher: pub,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mon.Run(ctx) }()

	waitForState(t, mon, usecases.StateMonitoring)

	// Hundreds of meters from every landmark: detection finds nothing and
	// the visited-set is never consulted.
	mon.OnPosition(domain.PositionUpdate{
		UserID:   "u-1",
		Location: domain.GeoPoint{Lat: 43.2800, Lon: -2.9100},
	})

	select {
	case <-store.fetched:
		t.Error("visited-set fetched for a sample with no nearby landmark")
	case <-time.After(100 * time.Millisecond):
	}
}
