package zcore

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThreadManagerParallelSum(t *testing.T) {
	m, err := NewThreadManager(4, NewHeapResource())
	require.NoError(t, err)
	defer m.Close()

	var counter atomic.Int64
	future, err := EnqueueLoop(m, 0, 10_000, func(iteration, threadID int64) {
		counter.Add(1)
	})
	require.NoError(t, err)

	_, err = future.Get()
	require.NoError(t, err)
	require.Equal(t, int64(10_000), counter.Load())
}

func TestThreadManagerPrecedenceChain(t *testing.T) {
	m, err := NewThreadManager(8, NewHeapResource())
	require.NoError(t, err)
	defer m.Close()

	var mu sync.Mutex
	var order []int64
	futures := make([]*Future[Unit], 0, 1000)

	for i := 0; i < 1000; i++ {
		future, err := Enqueue(m, func(threadID int64) Unit {
			mu.Lock()
			order = append(order, int64(i))
			mu.Unlock()
			return Unit{}
		}, WithPrecedence())
		require.NoError(t, err)
		futures = append(futures, future)
	}

	for _, f := range futures {
		_, err := f.Get()
		require.NoError(t, err)
	}

	require.Len(t, order, 1000)
	for i, v := range order {
		require.Equal(t, int64(i), v)
	}
}

func TestThreadManagerOverflowRecovery(t *testing.T) {
	m, err := NewThreadManager(2, NewHeapResource(), WithQueueCapacity(16))
	require.NoError(t, err)
	defer m.Close()

	var count atomic.Int64
	future, err := EnqueueLoop(m, 0, 100, func(iteration, threadID int64) {
		count.Add(1)
	})

	var overflow *ContainerOverflow[TaskExceptionData]
	if errors.As(err, &overflow) {
		RunPending(overflow.Data, unmanagedThreadID)
	} else {
		require.NoError(t, err)
	}

	_, err = future.Get()
	require.NoError(t, err)
	require.Equal(t, int64(100), count.Load())
}

func TestThreadManagerWaitForCompletion(t *testing.T) {
	m, err := NewThreadManager(2, NewHeapResource())
	require.NoError(t, err)
	defer m.Close()

	futures := make([]*Future[int], 0, 50)
	for i := 0; i < 50; i++ {
		i := i
		f, err := Enqueue(m, func(threadID int64) int { return i * i })
		require.NoError(t, err)
		futures = append(futures, f)
	}

	m.WaitForCompletion()
	require.Equal(t, 0, m.Size())

	for i, f := range futures {
		v, err := f.Get()
		require.NoError(t, err)
		require.Equal(t, i*i, v)
	}
}

func TestThreadManagerTaskPanicStillCompletes(t *testing.T) {
	m, err := NewThreadManager(2, NewHeapResource())
	require.NoError(t, err)
	defer m.Close()

	future, err := Enqueue(m, func(threadID int64) int {
		panic("boom")
	})
	require.NoError(t, err)

	_, err = future.Get()
	require.Error(t, err)

	second, err := Enqueue(m, func(threadID int64) int { return 7 }, WithPrecedence())
	require.NoError(t, err)
	v, err := second.Get()
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestThreadManagerGenerationReuse(t *testing.T) {
	m, err := NewThreadManager(2, NewHeapResource())
	require.NoError(t, err)
	defer m.Close()

	for gen := 0; gen < 3; gen++ {
		for i := 0; i < statusBitsetCapacity+10; i++ {
			f, err := Enqueue(m, func(threadID int64) int { return 1 })
			require.NoError(t, err)
			_, err = f.Get()
			require.NoError(t, err)
		}
	}
}

func TestThreadManagerCloseAbandonsQueuedWork(t *testing.T) {
	m, err := NewThreadManager(1, NewHeapResource())
	require.NoError(t, err)

	started := make(chan struct{})
	_, err = Enqueue(m, func(threadID int64) int {
		close(started)
		for m.numOfTasks.v.Load() != stateShutdown {
			runtime.Gosched()
		}
		return 1
	})
	require.NoError(t, err)
	<-started

	var queuedRan atomic.Bool
	_, err = Enqueue(m, func(threadID int64) int {
		queuedRan.Store(true)
		return 2
	})
	require.NoError(t, err)

	m.Close()
	require.True(t, m.closed)
	require.False(t, queuedRan.Load())
}
