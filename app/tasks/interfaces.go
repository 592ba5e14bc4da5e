package tasks

import (
	"context"

	"github.com/nightfeed/nightfeed/app/database"
	"github.com/nightfeed/nightfeed/app/feed"
)

// TaskSchedulerInterface defines the interface for task scheduling
// operations. Used by the main application to manage background
// processing.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// ProfileRefresher runs the refresh pipeline for one profile.
type ProfileRefresher interface {
	Refresh(ctx context.Context, profileID int64, kind database.RefreshKind) (*feed.Result, error)
}

// Provisioner syncs profile seed files into the database.
type Provisioner interface {
	Run() (int, error)
}
