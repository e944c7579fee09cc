// Package worker provides a bounded fan-out pool used to run the independent deletions of one
// ordering step concurrently and collect their errors.
//
// The pool limits the number of goroutines executing at once with a semaphore. A task may halt
// the pool: tasks already running are left to finish, tasks still waiting for a worker are
// skipped, and new submissions are ignored.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gruntwork-io/lz-teardown/internal/errors"
)

// Task represents a unit of work that can be executed
type Task func(ctx context.Context) error

// HaltFunc reports whether the given task error must stop the pool from starting further tasks.
type HaltFunc func(err error) bool

// Pool manages concurrent task execution with a configurable number of workers
type Pool struct {
	semaphore   chan struct{}
	allErrors   *errors.MultiError
	shouldHalt  HaltFunc
	wg          sync.WaitGroup
	maxWorkers  int
	allErrorsMu sync.Mutex
	halted      atomic.Bool
	skipped     atomic.Int32
}

// Option configures a Pool.
type Option func(*Pool)

// WithHaltOn makes the pool halt as soon as a task error satisfies fn.
func WithHaltOn(fn HaltFunc) Option {
	return func(wp *Pool) {
		wp.shouldHalt = fn
	}
}

// NewWorkerPool creates a new worker pool with the specified maximum number of concurrent workers
func NewWorkerPool(maxWorkers int, opts ...Option) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	wp := &Pool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
		allErrors:  &errors.MultiError{},
	}

	for _, opt := range opts {
		opt(wp)
	}

	return wp
}

// appendError safely appends an error to allErrors
func (wp *Pool) appendError(err error) {
	wp.allErrorsMu.Lock()
	wp.allErrors = wp.allErrors.Append(err)
	wp.allErrorsMu.Unlock()

	if wp.shouldHalt != nil && wp.shouldHalt(err) {
		wp.Halt()
	}
}

// Submit starts a goroutine that executes the task once a worker is available.
func (wp *Pool) Submit(ctx context.Context, task Task) {
	if wp.halted.Load() {
		wp.skipped.Add(1)
		return
	}

	wp.wg.Add(1)

	go func() {
		defer wp.wg.Done()

		select {
		case wp.semaphore <- struct{}{}:
		case <-ctx.Done():
			wp.appendError(errors.New(ctx.Err()))
			return
		}

		defer func() { <-wp.semaphore }()

		if wp.halted.Load() {
			wp.skipped.Add(1)
			return
		}

		if err := task(ctx); err != nil {
			wp.appendError(err)
		}
	}()
}

// Wait blocks until all submitted tasks are completed or skipped and returns the collected errors.
func (wp *Pool) Wait() error {
	wp.wg.Wait()

	wp.allErrorsMu.Lock()
	defer wp.allErrorsMu.Unlock()

	return wp.allErrors.ErrorOrNil()
}

// Halt prevents tasks that have not started yet from running.
func (wp *Pool) Halt() {
	wp.halted.Store(true)
}

// IsHalted returns whether the pool stopped accepting work.
func (wp *Pool) IsHalted() bool {
	return wp.halted.Load()
}

// Skipped returns the number of tasks that never ran because the pool was halted.
func (wp *Pool) Skipped() int {
	return int(wp.skipped.Load())
}
