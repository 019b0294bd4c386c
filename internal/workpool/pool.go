// Package workpool provides a bounded-concurrency task pool with a
// completion barrier and panic counting, the concurrency primitive shared
// by every sync orchestrator.
package workpool

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work submitted to a Pool. Side effects are observed
// through captured state; Task has no return value of its own, only a
// success/failure outcome.
type Task func(ctx context.Context) error

// Pool is a fixed-size worker pool bounded by numWorkers, consuming a
// shared task queue. Submitted tasks may run in any order relative to
// each other. A panicking task is recovered and counted rather than
// terminating the pool, mirroring a thread pool's panic-counting contract.
type Pool struct {
	ctx        context.Context
	group      *errgroup.Group
	semaphore  chan struct{}
	failed     atomic.Int64
	panicked   atomic.Int64
}

// New creates a Pool bounded by numWorkers, deriving cancellation from ctx.
func New(ctx context.Context, numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	return &Pool{
		ctx:       gctx,
		group:     g,
		semaphore: make(chan struct{}, numWorkers),
	}
}

// Submit enqueues task, blocking until a worker slot is available or the
// pool's context is cancelled. Submit never returns an error for the task
// itself; failures are recorded and surfaced through FailedCount/Wait.
func (p *Pool) Submit(task Task) {
	select {
	case p.semaphore <- struct{}{}:
	case <-p.ctx.Done():
		// The task is dropped; surface the cancellation through Wait.
		p.group.Go(func() error { return p.ctx.Err() })
		return
	}

	p.group.Go(func() error {
		defer func() { <-p.semaphore }()
		defer func() {
			if r := recover(); r != nil {
				p.panicked.Add(1)
				p.failed.Add(1)
			}
		}()
		if taskErr := task(p.ctx); taskErr != nil {
			p.failed.Add(1)
		}
		// Per-item failures never abort the pool: errgroup cancellation is
		// reserved for the caller's own ctx, never triggered by a task error.
		return nil
	})
}

// Wait blocks until every submitted task has completed or panicked.
// It returns the first unrecoverable error from the pool's own context
// (e.g. caller cancellation), not per-task failures — inspect FailedCount
// for those.
func (p *Pool) Wait() error {
	return p.group.Wait()
}

// FailedCount returns the number of tasks that returned an error or panicked.
func (p *Pool) FailedCount() int {
	return int(p.failed.Load())
}

// PanicCount returns the number of tasks that panicked, a subset of FailedCount.
func (p *Pool) PanicCount() int {
	return int(p.panicked.Load())
}
