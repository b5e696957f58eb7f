package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/aitorlarra/trailmeet/internal/core/domain"
)

// WorkflowStarter is the slice of client.Client needed to start visit
// workflows.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// StartVisitNotification starts the notification workflow for a credited
// visit. The workflow ID is derived from (user, landmark), so a redelivered
// event finds its workflow already running; that counts as success.
func StartVisitNotification(ctx context.Context, c WorkflowStarter, taskQueue string, ev *domain.VisitEvent) error {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("visit-%s-%s", ev.UserID, ev.LandmarkID),
		TaskQueue: taskQueue,
	}

	_, err := c.ExecuteWorkflow(ctx, opts, VisitNotificationWorkflow, VisitNotificationInput{
		UserID:        ev.UserID,
		LandmarkID:    ev.LandmarkID,
		LandmarkTitle: ev.LandmarkTitle,
		DetectedAt:    ev.DetectedAt,
	})
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	return nil
}
