// Package worker runs API fetches on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrNotStarted is returned when submitting to a pool that was not started.
var ErrNotStarted = errors.New("pool not started")

// ErrStopped is returned when submitting to a pool that is stopping.
var ErrStopped = errors.New("pool stopped")

// Task is a unit of work executed by a worker.
type Task interface {
	Execute(ctx context.Context) error
	ID() string
}

// Result reports the outcome of one task.
type Result struct {
	TaskID string
	Error  error
}

// Pool runs submitted tasks on a fixed number of workers.
type Pool struct {
	workers   int
	tasks     chan Task
	results   chan Result
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	started   atomic.Bool
	stopped   bool
	processed atomic.Int64
	errors    atomic.Int64
}

// Config configures the worker pool.
type Config struct {
	Workers   int // Number of workers (default: GOMAXPROCS)
	QueueSize int // Size of task queue (default: workers * 2)
}

// NewPool creates a pool bound to parent. Cancelling parent cancels every
// running task.
func NewPool(parent context.Context, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers: cfg.Workers,
		tasks:   make(chan Task, cfg.QueueSize),
		results: make(chan Result, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. It is a no-op on a started pool.
func (p *Pool) Start() {
	if p.started.Swap(true) {
		return
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case task, ok := <-p.tasks:
			if !ok {
				return
			}

			err := task.Execute(p.ctx)

			p.processed.Add(1)
			if err != nil {
				p.errors.Add(1)
			}

			select {
			case p.results <- Result{TaskID: task.ID(), Error: err}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task, blocking while the queue is full.
func (p *Pool) Submit(task Task) error {
	if !p.started.Load() {
		return ErrNotStarted
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Results returns the results channel. It is closed once the pool stops.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Stop cancels running tasks and waits for the workers to exit.
func (p *Pool) Stop() {
	p.cancel()
	p.shutdown()
}

// StopWait drains queued tasks before stopping.
func (p *Pool) StopWait() {
	p.shutdown()
	p.cancel()
}

func (p *Pool) shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.results)
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Processed: p.processed.Load(),
		Errors:    p.errors.Load(),
		Pending:   len(p.tasks),
	}
}

// Stats contains pool statistics.
type Stats struct {
	Workers   int
	Processed int64
	Errors    int64
	Pending   int
}

// String returns a string representation of the stats.
func (s Stats) String() string {
	return fmt.Sprintf("workers=%d processed=%d errors=%d pending=%d",
		s.Workers, s.Processed, s.Errors, s.Pending)
}

// Run executes tasks on a temporary pool and returns their results in
// submission order.
func Run(ctx context.Context, cfg Config, tasks ...Task) []Result {
	if cfg.Workers <= 0 || cfg.Workers > len(tasks) {
		cfg.Workers = len(tasks)
	}
	if len(tasks) == 0 {
		return nil
	}

	pool := NewPool(ctx, cfg)
	pool.Start()

	byID := make(map[string]Result, len(tasks))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			byID[r.TaskID] = r
		}
	}()

	rejected := map[string]error{}
	for _, t := range tasks {
		if err := pool.Submit(t); err != nil {
			rejected[t.ID()] = err
		}
	}
	pool.StopWait()
	<-done

	for id, err := range rejected {
		byID[id] = Result{TaskID: id, Error: err}
	}

	out := make([]Result, len(tasks))
	for i, t := range tasks {
		r, ok := byID[t.ID()]
		if !ok {
			r = Result{TaskID: t.ID(), Error: ctx.Err()}
		}
		out[i] = r
	}
	return out
}

// FirstError returns the first failed result's error.
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("%s: %w", r.TaskID, r.Error)
		}
	}
	return nil
}
