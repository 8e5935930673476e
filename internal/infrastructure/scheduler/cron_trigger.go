package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Submitter queues a run of a named task
type Submitter interface {
	Submit(task string) (*Job, error)
}

// Schedule fires Task every Interval
type Schedule struct {
	Task     string
	Interval time.Duration
}

// SchedulesFrom builds the periodic schedules enabled in cfg
func SchedulesFrom(cfg config.SchedulerConfig) []Schedule {
	schedules := []Schedule{{Task: TaskAllocationExpireSweep, Interval: cfg.SweepInterval}}
	if cfg.ReconcileEnabled {
		schedules = append(schedules, Schedule{Task: TaskLedgerReconcile, Interval: cfg.ReconcileInterval})
	}
	return schedules
}

// CronTrigger submits each scheduled task on its own ticker
type CronTrigger struct {
	schedules []Schedule
	submitter Submitter
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(submitter Submitter, logger *zap.Logger, schedules ...Schedule) *CronTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		schedules: schedules,
		submitter: submitter,
		logger:    logger,
	}
}

// Start starts one loop per schedule
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return nil
	}
	c.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for _, sched := range c.schedules {
		if sched.Interval <= 0 {
			c.logger.Warn("Skipping schedule without interval", zap.String("task", sched.Task))
			continue
		}
		c.wg.Add(1)
		go c.runLoop(ctx, sched)
		c.logger.Info("Cron trigger scheduled",
			zap.String("task", sched.Task),
			zap.Duration("interval", sched.Interval),
		)
	}
	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context, sched Schedule) {
	defer c.wg.Done()

	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.trigger(sched.Task)
		}
	}
}

// trigger submits task. A run still in progress means this tick is skipped.
func (c *CronTrigger) trigger(task string) {
	_, err := c.submitter.Submit(task)
	switch {
	case err == nil:
	case errors.Is(err, ErrJobAlreadyQueued):
		c.logger.Debug("Previous run still in progress", zap.String("task", task))
	default:
		c.logger.Error("Failed to submit scheduled job", zap.String("task", task), zap.Error(err))
	}
}
