package workers

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotRunning   = errors.New("worker pool is not running")
	ErrShuttingDown = errors.New("worker pool is shutting down")
	ErrQueueFull    = errors.New("job queue is full")
)

// Job is a unit of background work. ctx is cancelled when the pool stops.
type Job struct {
	Name string
	Run  func(ctx context.Context)
}

// Pool runs submitted jobs on a fixed number of goroutines
type Pool struct {
	name      string
	workers   int
	jobQueue  chan Job
	workerWg  sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	mu        sync.RWMutex
}
