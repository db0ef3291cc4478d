package jobs

import (
	"carrental-backend/internal/config"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository/postgres"
)

// JobRunner coordinates the contract lifecycle jobs.
type JobRunner struct {
	store  *postgres.Store
	config *config.Config
}

func NewJobRunner(store *postgres.Store, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:  store,
		config: cfg,
	}
}

// Config exposes the runner's configuration to the scheduler.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery so one bad run
// cannot take the scheduler down.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	log := logger.WithJob(jobName)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
		}
	}()

	log.Info("Starting job")
	jobFunc()
	log.Info("Job completed")
}

// RunAllLifecycleJobs runs both lifecycle jobs once (for manual execution).
func (jr *JobRunner) RunAllLifecycleJobs() {
	jr.ActivateConfirmedContracts()
	jr.CompleteActiveContracts()
}
