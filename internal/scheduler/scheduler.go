package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"carrental-backend/internal/jobs"
	"carrental-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

// registerJobs registers the lifecycle jobs with the cron scheduler
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	_, err := s.cron.AddFunc(cfg.ActivateContracts, s.jobs.ActivateConfirmedContracts)
	if err != nil {
		logger.Error("Failed to register ActivateConfirmedContracts job", "error", err)
	}

	_, err = s.cron.AddFunc(cfg.CompleteContracts, s.jobs.CompleteActiveContracts)
	if err != nil {
		logger.Error("Failed to register CompleteActiveContracts job", "error", err)
	}

	logger.Info("Lifecycle jobs registered",
		"activate", cfg.ActivateContracts,
		"complete", cfg.CompleteContracts)
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if jobs are registered with the scheduler
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
