package workers

import (
	"context"
	"fmt"

	"github.com/JSH-Team/mediabatch/internal/utils/logger"
)

// NewPool creates a stopped pool named after the work it does
func NewPool(name string, maxWorkers int, queueSize int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		name:      name,
		workers:   maxWorkers,
		jobQueue:  make(chan Job, queueSize),
		ctx:       ctx,
		cancel:    cancel,
		isRunning: false,
	}
}

// Start launches the worker goroutines
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("%s pool is already running", p.name)
	}
	if p.ctx.Err() != nil {
		return fmt.Errorf("%s pool: %w", p.name, ErrShuttingDown)
	}

	for i := 0; i < p.workers; i++ {
		p.workerWg.Add(1)
		go p.worker(i)
	}

	p.isRunning = true
	logger.Debug("Started %s pool with %d workers", p.name, p.workers)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit. Queued jobs
// that never started are dropped. A stopped pool cannot be restarted.
func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return nil
	}

	// Cancel context to signal workers to stop
	p.cancel()

	close(p.jobQueue)

	p.workerWg.Wait()

	p.isRunning = false
	logger.Debug("Stopped %s pool", p.name)
	return nil
}

// Submit queues a job without blocking
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.isRunning {
		return fmt.Errorf("%s pool: %w", p.name, ErrNotRunning)
	}

	select {
	case <-p.ctx.Done():
		return fmt.Errorf("%s pool: %w", p.name, ErrShuttingDown)
	default:
	}

	select {
	case p.jobQueue <- job:
		return nil
	default:
		return fmt.Errorf("%s pool: %w", p.name, ErrQueueFull)
	}
}

// GetQueueSize returns the current number of jobs in the queue
func (p *Pool) GetQueueSize() int {
	return len(p.jobQueue)
}

// IsRunning returns whether the worker pool is currently running
func (p *Pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// Context is cancelled when the pool stops. Jobs derive their own
// cancellable contexts from it.
func (p *Pool) Context() context.Context {
	return p.ctx
}

func (p *Pool) worker(workerID int) {
	defer p.workerWg.Done()

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			if p.ctx.Err() != nil {
				return
			}
			p.processJob(workerID, job)

		case <-p.ctx.Done():
			return
		}
	}
}

// processJob runs one job. A panicking job is logged and does not take the
// worker down.
func (p *Pool) processJob(workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s worker %d: job %s panicked: %v", p.name, workerID, job.Name, r)
		}
	}()
	job.Run(p.ctx)
}
