package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Task is a named unit of background ledger work
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Job is one submitted execution of a task
type Job struct {
	ID          uuid.UUID
	Task        string
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
}

// NewJob creates a pending job for task
func NewJob(task string, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Task:       task,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

func (j *Job) start(now time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

func (j *Job) complete(now time.Time) {
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

func (j *Job) fail(now time.Time, err error) {
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err.Error()
}

// ShouldRetry returns true if a failed job has retries left
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// Config holds worker pool settings
type Config struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// ConfigFrom extracts pool settings from the application config
func ConfigFrom(cfg config.SchedulerConfig) Config {
	return Config{
		Workers:       cfg.Workers,
		QueueSize:     cfg.QueueSize,
		JobTimeout:    cfg.JobTimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}
}

// JobObserver is told about every finished job attempt
type JobObserver func(job *Job, duration time.Duration)

// Scheduler runs submitted jobs on a fixed pool of workers fed by a
// bounded queue. A task never runs twice at the same time; a submission
// while it is queued or running is refused with ErrJobAlreadyQueued.
type Scheduler struct {
	config   Config
	clock    shared.Clock
	logger   *zap.Logger
	observer JobObserver

	tasks  map[string]Task
	active map[string]bool

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	retries   sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a scheduler for tasks
func NewScheduler(cfg Config, clock shared.Clock, logger *zap.Logger, tasks ...Task) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if clock == nil {
		clock = shared.NewSystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		config: cfg,
		clock:  clock,
		logger: logger,
		tasks:  make(map[string]Task, len(tasks)),
		active: make(map[string]bool),
	}
	for _, t := range tasks {
		s.tasks[t.Name()] = t
	}
	return s
}

// SetObserver installs a hook called after every attempt
func (s *Scheduler) SetObserver(observer JobObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

// Start launches the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.jobs = make(chan *Job, s.config.QueueSize)
	s.active = make(map[string]bool)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i, s.jobs)
	}

	s.logger.Info("Ledger scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Int("queue_size", s.config.QueueSize),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.retries.Wait()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Ledger scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Ledger scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a run of the named task
func (s *Scheduler) Submit(task string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return nil, ErrSchedulerNotRunning
	}
	if _, ok := s.tasks[task]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}
	if s.active[task] {
		return nil, fmt.Errorf("%w: %s", ErrJobAlreadyQueued, task)
	}

	job := NewJob(task, s.config.RetryAttempts)
	select {
	case s.jobs <- job:
		s.active[task] = true
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("task", task),
		)
		return job, nil
	default:
		return nil, ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int, jobs <-chan *Job) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	task := s.tasks[job.Task]
	started := s.clock.Now()
	job.start(started)

	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("task", job.Task),
	)

	jobCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	err := s.run(jobCtx, task)
	finished := s.clock.Now()
	if err == nil {
		job.complete(finished)
		log.Info("Job completed", zap.Duration("duration", finished.Sub(started)))
		s.finish(job, finished.Sub(started))
		return
	}

	job.fail(finished, err)
	log.Error("Job failed", zap.Int("retry_count", job.RetryCount), zap.Error(err))
	s.notify(job, finished.Sub(started))

	if job.ShouldRetry() && ctx.Err() == nil {
		job.RetryCount++
		job.Status = JobStatusPending
		s.scheduleRetry(ctx, job)
		log.Info("Job scheduled for retry",
			zap.Int("retry_count", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Duration("delay", s.config.RetryDelay),
		)
		return
	}
	s.release(job.Task)
}

// run executes the task and turns a panic into an error
func (s *Scheduler) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return task.Run(ctx)
}

// scheduleRetry requeues job after the retry delay. The task stays marked
// active meanwhile so a trigger cannot start a second copy.
func (s *Scheduler) scheduleRetry(ctx context.Context, job *Job) {
	s.mu.Lock()
	jobs := s.jobs
	s.mu.Unlock()

	s.retries.Add(1)
	go func() {
		defer s.retries.Done()
		timer := time.NewTimer(s.config.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			s.release(job.Task)
			return
		case <-timer.C:
		}
		select {
		case jobs <- job:
		default:
			s.logger.Warn("Failed to re-queue job for retry",
				zap.String("job_id", job.ID.String()),
				zap.String("task", job.Task),
			)
			s.release(job.Task)
		}
	}()
}

func (s *Scheduler) finish(job *Job, d time.Duration) {
	s.notify(job, d)
	s.release(job.Task)
}

func (s *Scheduler) notify(job *Job, d time.Duration) {
	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(job, d)
	}
}

func (s *Scheduler) release(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, task)
}
