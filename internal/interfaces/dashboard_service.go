package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/macrobias/internal/models"
)

// DashboardService runs refresh cycles and serves the latest snapshot
type DashboardService interface {
	// Refresh runs one full cycle and publishes the result
	Refresh(ctx context.Context) (*models.Snapshot, error)

	// Snapshot returns the latest snapshot, running a cycle if none exists yet
	Snapshot(ctx context.Context) (*models.Snapshot, error)

	// Invalidate drops cached quotes and news so the next cycle fetches fresh data
	Invalidate()
}

// JobStatus reports the state of the scheduled refresh job
type JobStatus struct {
	Schedule  string     `json:"schedule"`
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// SchedulerService manages cron-based refresh
type SchedulerService interface {
	Start() error
	Stop() error
	TriggerNow() error
	IsRunning() bool
	Status() JobStatus
}
