package jobs

import (
	"context"
	"time"

	"municipal-library-backend/internal/config"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/repository"
	"municipal-library-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	loans   repository.LoanRepository
	items   repository.ItemRepository
	patrons repository.PatronRepository
	email   service.EmailService
	config  config.SchedulerConfig
	now     func() time.Time
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(repos repository.Repositories, email service.EmailService, cfg config.SchedulerConfig) *JobRunner {
	return &JobRunner{
		loans:   repos.Loans,
		items:   repos.Items,
		patrons: repos.Patrons,
		email:   email,
		config:  cfg,
		now:     time.Now,
	}
}

// Config returns the cron schedules the runner was built with.
func (jr *JobRunner) Config() config.SchedulerConfig {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) (err error) {
	log := logger.WithMethod("JobRunner." + jobName)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	log.Info("Starting job", "job", jobName)
	start := time.Now()
	if err = jobFunc(context.Background()); err != nil {
		log.Error("Job failed", "job", jobName, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}
	log.Info("Job completed", "job", jobName, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// RunAllNightlyJobs runs all nightly jobs (for manual execution)
func (jr *JobRunner) RunAllNightlyJobs() error {
	if err := jr.RefreshOverdueLoans(); err != nil {
		return err
	}
	return jr.SendOverdueReminders()
}
