package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// VisitNotificationInput is the input for the visit notification workflow.
type VisitNotificationInput struct {
	UserID        string
	LandmarkID    string
	LandmarkTitle string
	DetectedAt    time.Time
}

// VisitNotificationWorkflow congratulates a user on a newly credited
// landmark visit and fans the news out to their active friends. Friend
// fan-out is best-effort: the user's own notification is the one that
// must not be lost.
func VisitNotificationWorkflow(ctx workflow.Context, input VisitNotificationInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting visit notification workflow", "landmarkID", input.LandmarkID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Resolve the landmark title. Events published before a
	// catalog update may carry a stale or empty title.
	title := input.LandmarkTitle
	if title == "" {
		if err := workflow.ExecuteActivity(ctx, "ResolveLandmarkTitle", input.LandmarkID).Get(ctx, &title); err != nil {
			return err
		}
	}

	// Step 2: Notify the visitor.
	err := workflow.ExecuteActivity(ctx, "SendVisitPush", input.UserID, title).Get(ctx, nil)
	if err != nil {
		return err
	}

	// Step 3: Tell active friends. Failures here do not fail the workflow.
	var friendIDs []string
	if err := workflow.ExecuteActivity(ctx, "FindActiveFriendIDs", input.UserID).Get(ctx, &friendIDs); err != nil {
		logger.Warn("friend lookup failed, skipping fan-out", "error", err)
		return nil
	}
	for _, friendID := range friendIDs {
		if err := workflow.ExecuteActivity(ctx, "SendFriendCheckinPush", friendID, input.UserID, title).Get(ctx, nil); err != nil {
			logger.Warn("friend notification failed", "friendID", friendID, "error", err)
		}
	}

	logger.Info("Visit notifications sent", "friends", len(friendIDs))
	return nil
}
