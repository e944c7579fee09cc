package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/worker"
)

var errStop = errors.New("stop")

func TestAllTasksCompleteWithoutErrors(t *testing.T) {
	t.Parallel()

	wp := worker.NewWorkerPool(5)

	var counter int32

	for range 10 {
		wp.Submit(context.Background(), func(context.Context) error {
			atomic.AddInt32(&counter, 1)
			return nil
		})
	}

	require.NoError(t, wp.Wait())
	assert.Equal(t, int32(10), atomic.LoadInt32(&counter))
}

func TestSomeTasksReturnErrors(t *testing.T) {
	t.Parallel()

	wp := worker.NewWorkerPool(3)

	var successCount int32

	for i := range 10 {
		wp.Submit(context.Background(), func(context.Context) error {
			if i%2 == 0 {
				return errors.New("mock error")
			}

			atomic.AddInt32(&successCount, 1)

			return nil
		})
	}

	err := wp.Wait()
	require.Error(t, err)

	var multiErr *errors.MultiError

	require.ErrorAs(t, err, &multiErr)
	assert.Len(t, multiErr.WrappedErrors(), 5)
	assert.Equal(t, int32(5), atomic.LoadInt32(&successCount))
}

func TestMaxConcurrency(t *testing.T) {
	t.Parallel()

	const maxWorkers = 2

	wp := worker.NewWorkerPool(maxWorkers)

	var running, peak int32

	for range 8 {
		wp.Submit(context.Background(), func(context.Context) error {
			current := atomic.AddInt32(&running, 1)

			for {
				old := atomic.LoadInt32(&peak)
				if current <= old || atomic.CompareAndSwapInt32(&peak, old, current) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)

			return nil
		})
	}

	require.NoError(t, wp.Wait())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(maxWorkers))
}

func TestHaltSkipsPendingTasks(t *testing.T) {
	t.Parallel()

	wp := worker.NewWorkerPool(1, worker.WithHaltOn(func(err error) bool {
		return errors.Is(err, errStop)
	}))

	var ran int32

	wp.Submit(context.Background(), func(context.Context) error {
		atomic.AddInt32(&ran, 1)
		return errStop
	})

	require.Error(t, wp.Wait())
	assert.True(t, wp.IsHalted())

	for range 3 {
		wp.Submit(context.Background(), func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}

	require.Error(t, wp.Wait())
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
	assert.Equal(t, 3, wp.Skipped())
}
