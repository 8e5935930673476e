package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrUnknownTask is returned when no task is registered under the name
	ErrUnknownTask = errors.New("unknown task")

	// ErrJobAlreadyQueued is returned when the task is already queued or running
	ErrJobAlreadyQueued = errors.New("job already queued")

	// ErrTaskPanicked wraps a recovered panic from a task
	ErrTaskPanicked = errors.New("task panicked")
)
