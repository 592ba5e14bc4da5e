package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// SyncProfilesTask loads profile seed files into the database. It runs
// once at startup when a profiles directory is configured.
type SyncProfilesTask struct {
	Task
	provisioner Provisioner
}

func NewSyncProfilesTask(provisioner Provisioner) *SyncProfilesTask {
	return &SyncProfilesTask{
		Task:        NewTask(TaskTypeSyncProfiles, 0),
		provisioner: provisioner,
	}
}

func (t *SyncProfilesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	count, err := t.provisioner.Run()
	if err != nil {
		return fmt.Errorf("failed to sync profiles: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncProfiles",
		"duration", t.GetDuration(),
		"synced", count)

	return nil
}
