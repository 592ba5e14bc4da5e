package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nightfeed/nightfeed/app/database"
)

// RefreshProfileTask runs one scheduled refresh. Refresh failures are
// recorded on the profile and the profile stays due, so the task itself
// never retries; the next scheduler pass picks it up again.
type RefreshProfileTask struct {
	Task
	refresher ProfileRefresher
}

func NewRefreshProfileTask(profileID int64, refresher ProfileRefresher) *RefreshProfileTask {
	task := NewTask(TaskTypeRefreshProfile, profileID)
	task.MaxRetries = 0
	return &RefreshProfileTask{
		Task:      task,
		refresher: refresher,
	}
}

func (t *RefreshProfileTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.refresher.Refresh(ctx, t.ProfileID, database.RefreshAuto)
	if err != nil {
		return fmt.Errorf("failed to refresh profile %d: %w", t.ProfileID, err)
	}

	slog.Debug("Task completed",
		"type", "RefreshProfile",
		"profile_id", t.ProfileID,
		"duration", t.GetDuration(),
		"outcome", result.Outcome,
		"new", result.NewItems)

	return nil
}
