package workflows_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
	"github.com/aitorlarra/trailmeet/internal/workflows"
)

type mockWorkflowStarter struct {
	opts  client.StartWorkflowOptions
	err   error
	calls int
}

func (m *mockWorkflowStarter) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	m.calls++
	m.opts = options
	return nil, m.err
}

func sampleVisit() *domain.VisitEvent {
	return &domain.VisitEvent{
		UserID:        "maite",
		LandmarkID:    "lm-003",
		LandmarkTitle: "Zubizuri Bridge",
		DetectedAt:    time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestStartVisitNotification_DerivesWorkflowID(t *testing.T) {
	starter := &mockWorkflowStarter{}

	err := workflows.StartVisitNotification(context.Background(), starter, "visit-notifications", sampleVisit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if starter.opts.ID != "visit-maite-lm-003" {
		t.Errorf("expected workflow ID visit-maite-lm-003, got %q", starter.opts.ID)
	}
	if starter.opts.TaskQueue != "visit-notifications" {
		t.Errorf("expected task queue visit-notifications, got %q", starter.opts.TaskQueue)
	}
}

func TestStartVisitNotification_AlreadyStartedIsSuccess(t *testing.T) {
	starter := &mockWorkflowStarter{
		err: serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "req-1", "run-1"),
	}

	err := workflows.StartVisitNotification(context.Background(), starter, "visit-notifications", sampleVisit())
	if err != nil {
		t.Errorf("redelivered event must not error, got %v", err)
	}
	if starter.calls != 1 {
		t.Errorf("expected one start attempt, got %d", starter.calls)
	}
}

func TestStartVisitNotification_OtherErrorsPropagate(t *testing.T) {
	starter := &mockWorkflowStarter{err: errors.New("frontend unavailable")}

	err := workflows.StartVisitNotification(context.Background(), starter, "visit-notifications", sampleVisit())
	if err == nil {
		t.Fatal("expected error when the workflow cannot be started")
	}
}
