package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
	"github.com/sitepass/subscription-whitelist/internal/pkg/metrics"
)

var ErrJobNotFound = apperror.New(apperror.ErrNotFound, "job not found")

// Job represents a scheduled job
type Job struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
}

// Scheduler manages scheduled jobs. Each job runs on its own ticker in its
// own goroutine, so a slow or failing job never delays another.
type Scheduler struct {
	jobs    []Job
	metrics *metrics.Metrics
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewScheduler creates a new cron scheduler. m may be nil.
func NewScheduler(m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:    make([]Job, 0),
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(name string, interval time.Duration, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, Job{
		Name:     name,
		Interval: interval,
		Fn:       fn,
	})
	slog.Info("Cron job registered", "name", name, "interval", interval)
}

// Jobs lists the registered jobs in registration order.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = JobInfo{Name: j.Name, Interval: j.Interval}
	}
	return out
}

// Start begins running all scheduled jobs
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(job)
	}

	slog.Info("Cron scheduler started", "job_count", len(s.jobs))
}

// Stop gracefully stops all scheduled jobs
func (s *Scheduler) Stop() {
	slog.Info("Stopping cron scheduler...")
	s.cancel()
	s.wg.Wait()
	slog.Info("Cron scheduler stopped")
}

// runJob runs a single job on its schedule
func (s *Scheduler) runJob(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	// Run immediately on start
	_ = s.executeJob(s.ctx, job)

	for {
		select {
		case <-s.ctx.Done():
			slog.Info("Cron job stopping", "name", job.Name)
			return
		case <-ticker.C:
			_ = s.executeJob(s.ctx, job)
		}
	}
}

// executeJob executes a job, logs results and converts panics to errors
func (s *Scheduler) executeJob(ctx context.Context, job Job) (err error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := slog.With("name", job.Name, "run_id", runID)
	logger.Debug("Cron job starting")

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, p)
		}

		duration := time.Since(start)
		result := "ok"
		if err != nil {
			result = "error"
			logger.Error("Cron job failed", "error", err, "duration", duration)
		} else {
			logger.Info("Cron job completed", "duration", duration)
		}
		if s.metrics != nil {
			s.metrics.JobRuns.WithLabelValues(job.Name, result).Inc()
			s.metrics.JobDuration.WithLabelValues(job.Name).Observe(duration.Seconds())
		}
	}()

	return job.Fn(ctx)
}

// RunJob triggers one job by name outside its schedule and returns its error.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	s.mu.Lock()
	var (
		job   Job
		found bool
	)
	for _, j := range s.jobs {
		if j.Name == name {
			job, found = j, true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.executeJob(ctx, job)
}

// RunOnce runs all jobs once, continuing past failures
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, info := range s.Jobs() {
		if err := s.RunJob(ctx, info.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
