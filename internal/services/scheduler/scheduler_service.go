package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/interfaces"
)

const (
	// DefaultSchedule matches the two-minute page refresh of the dashboard
	DefaultSchedule = "@every 2m"

	refreshTimeout = 2 * time.Minute
	stopTimeout    = 30 * time.Second
)

// ErrRefreshInProgress is returned by TriggerNow while a cycle is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Service runs dashboard refresh cycles on a cron schedule
type Service struct {
	dashboard interfaces.DashboardService
	schedule  string
	cron      *cron.Cron
	logger    arbor.ILogger

	mu           sync.Mutex // Protects the fields below
	running      bool
	isProcessing bool
	entryID      cron.EntryID
	lastRun      *time.Time
	lastError    string
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a new scheduler service
func NewService(dashboard interfaces.DashboardService, config common.SchedulerConfig, logger arbor.ILogger) *Service {
	schedule := config.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Service{
		dashboard: dashboard,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start registers the refresh job and starts the cron runner
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	id, err := s.cron.AddFunc(s.schedule, s.runScheduledRefresh)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = id

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for an in-flight refresh to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cron.Remove(s.entryID)
	s.mu.Unlock()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(stopTimeout):
		s.logger.Warn().Dur("timeout", stopTimeout).Msg("Refresh did not finish before scheduler stop timeout")
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// TriggerNow starts a refresh immediately in the background
func (s *Service) TriggerNow() error {
	s.mu.Lock()
	busy := s.isProcessing
	s.mu.Unlock()
	if busy {
		return ErrRefreshInProgress
	}

	s.logger.Info().Msg("Manual refresh trigger requested")
	common.SafeGo(s.logger, "scheduler.trigger", s.runScheduledRefresh)
	return nil
}

// IsRunning reports whether the cron runner is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status reports schedule, last run and next run
func (s *Service) Status() interfaces.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := interfaces.JobStatus{
		Schedule:  s.schedule,
		Running:   s.isProcessing,
		LastRun:   s.lastRun,
		LastError: s.lastError,
	}
	if s.running {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// runScheduledRefresh runs one dashboard cycle, skipping if one is already running
func (s *Service) runScheduledRefresh() {
	s.mu.Lock()
	if s.isProcessing {
		s.mu.Unlock()
		s.logger.Debug().Msg("Refresh already in progress, skipping this tick")
		return
	}
	s.isProcessing = true
	s.mu.Unlock()

	start := time.Now()
	var runErr error

	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduled refresh")
		}

		completed := time.Now()
		s.mu.Lock()
		s.isProcessing = false
		s.lastRun = &completed
		s.lastError = ""
		if runErr != nil {
			s.lastError = runErr.Error()
		}
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	snap, err := s.dashboard.Refresh(ctx)
	if err != nil {
		runErr = err
		s.logger.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Scheduled refresh failed")
		return
	}

	s.logger.Debug().
		Str("cycle_id", snap.CycleID).
		Dur("duration", time.Since(start)).
		Msg("Scheduled refresh completed")
}
