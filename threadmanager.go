package zcore

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	// stateCreating is the num_of_tasks sentinel a freshly spawned worker
	// parks on until construction finishes.
	stateCreating = -2
	// stateShutdown is the num_of_tasks sentinel a worker observes to exit
	// its loop for good.
	stateShutdown = -1

	// defaultQueueCapacity is default_capacity(): the task queue's capacity
	// when a manager is constructed without WithQueueCapacity.
	defaultQueueCapacity = 1024

	// statusBitsetCapacity bounds the number of live task IDs before the
	// manager must quiesce and reuse the ID space from 0.
	statusBitsetCapacity = 4 * chunkBits

	// taskArenaSize is the per-task-ID MonotonicArena's capacity: enough
	// for a handful of small bookkeeping reservations before falling back
	// to the upstream resource.
	taskArenaSize = 8 * sizeOfCacheLine

	// taskBookkeepingSize is the per-enqueue reservation made against a
	// task's arena, standing in for a sizeof(payload)-scaled heuristic: Go
	// tasks are ordinary heap values (placement-constructing a type
	// holding interfaces/channels into a raw byte buffer would defeat the
	// GC), so the arena here tracks the accounting rather than actually
	// hosting the task object.
	taskBookkeepingSize = 64

	// unmanagedThreadID is the value callers should pass as threadID on
	// behalf of a goroutine outside the pool (e.g. to RunPending), matching
	// the documented sentinel INT64_MIN.
	unmanagedThreadID = math.MinInt64
)

// paddedCounter isolates one hot atomic on its own cache-line-sized
// region: taskIDCounter, numOfTasks, and numOfActiveWorkers must never
// share a line.
type paddedCounter struct {
	v atomic.Int64
	_ [chunkAlignment - sizeOfAtomicInt64]byte
}

// ThreadManager owns a fixed set of worker goroutines and the queue they
// share, issuing task IDs, distributing loop iterations, and enforcing
// precedence between tasks.
//
// Go goroutines are not bound to OS threads, so there is no stable OS
// thread id to map into a dense [0,N) worker index by binary search; each
// worker goroutine instead closes over its own stable [0,N) id at spawn
// time, and that id is threaded directly into every PackagedTask
// invocation as threadID. There is accordingly no GetCurrentThreadID
// query API; callers already receive their worker id as a parameter.
type ThreadManager struct {
	resource MemoryResource
	logger   *Logger

	taskIDCounter      paddedCounter
	numOfTasks         paddedCounter
	numOfActiveWorkers paddedCounter

	gate *wakeGate

	queue  *LockFreeQueue[WorkerItem]
	status *AtomicBitset
	arenas []*MonotonicArena

	numThreads int
	wg         sync.WaitGroup

	idMu   sync.Mutex
	mu     sync.Mutex
	closed bool
}

// NewThreadManager creates a manager with numThreads workers (0 meaning
// "match logical cores") over resource.
func NewThreadManager(numThreads int, resource MemoryResource, opts ...ThreadManagerOption) (*ThreadManager, error) {
	if numThreads <= 0 {
		numThreads = runtime.GOMAXPROCS(0)
	}
	cfg := resolveThreadManagerOptions(opts)

	status, err := NewAtomicBitset(statusBitsetCapacity, resource)
	if err != nil {
		return nil, err
	}
	arenas := make([]*MonotonicArena, statusBitsetCapacity)
	for i := range arenas {
		a, err := NewMonotonicArena(taskArenaSize, 8, resource)
		if err != nil {
			return nil, err
		}
		arenas[i] = a
	}

	m := &ThreadManager{
		resource:   resource,
		logger:     cfg.logger,
		gate:       newWakeGate(),
		queue:      NewLockFreeQueue[WorkerItem](cfg.capacity),
		status:     status,
		arenas:     arenas,
		numThreads: numThreads,
	}
	if m.logger == nil {
		m.logger = getGlobalLogger()
	}

	m.numOfTasks.v.Store(stateCreating)
	m.numOfActiveWorkers.v.Store(int64(numThreads))

	m.wg.Add(numThreads)
	for i := 0; i < numThreads; i++ {
		workerID := int64(i)
		go func() {
			defer m.wg.Done()
			m.awaitCreationBarrier()
			m.workerLoop(workerID)
		}()
	}

	m.numOfTasks.v.Store(0)
	m.gate.NotifyAll()

	m.logger.Info().Int("workers", numThreads).Int("queue_capacity", m.queue.Capacity()).Log("thread manager started")
	return m, nil
}

// NumOfThreads returns the number of worker goroutines.
func (m *ThreadManager) NumOfThreads() int { return m.numThreads }

// Capacity returns the queue's current capacity.
func (m *ThreadManager) Capacity() int { return m.queue.Capacity() }

// Size returns the queue's approximate current occupancy.
func (m *ThreadManager) Size() int { return m.queue.Size() }

// IsEmpty reports whether the queue currently holds no items.
func (m *ThreadManager) IsEmpty() bool { return m.Size() == 0 }

func (m *ThreadManager) awaitCreationBarrier() {
	for {
		gen := m.gate.Load()
		if m.numOfTasks.v.Load() != stateCreating {
			return
		}
		m.gate.Wait(gen)
	}
}

// workerLoop is the body run by every worker goroutine: dequeue-and-run,
// yield-if-in-flight, park-if-drained, exit-on-shutdown.
func (m *ThreadManager) workerLoop(workerID int64) {
	for {
		// Any negative count after the creation barrier means shutdown: a
		// dequeue racing Close can decrement it below stateShutdown.
		if m.numOfTasks.v.Load() < 0 {
			return
		}
		if item, ok := m.queue.Dequeue(); ok {
			m.numOfTasks.v.Add(-1)
			item.Run(workerID)
			continue
		}

		n := m.numOfTasks.v.Load()
		switch {
		case n == stateShutdown:
			return
		case n > 0:
			runtime.Gosched()
		default:
			m.parkUntilWork()
		}
	}
}

// parkUntilWork decrements the active-worker count, blocks until either
// new work or shutdown is signaled, then restores the count. The gate
// generation is snapshotted before the condition check (not after), which
// is what keeps a notify that lands between the check and the wait call
// from being missed: a notifier always mutates num_of_tasks before
// bumping the generation, so any mutation concurrent with or after our
// snapshot is visible in our own re-check of num_of_tasks.
func (m *ThreadManager) parkUntilWork() {
	m.numOfActiveWorkers.v.Add(-1)
	defer m.numOfActiveWorkers.v.Add(1)
	for {
		gen := m.gate.Load()
		n := m.numOfTasks.v.Load()
		if n != 0 {
			return
		}
		m.gate.Wait(gen)
		if m.numOfTasks.v.Load() == stateShutdown {
			return
		}
	}
}

// waitForPrecedence spins, yielding between checks, until every task with
// a strictly smaller id has completed.
func (m *ThreadManager) waitForPrecedence(id int64) {
	for !m.status.IsAllRange(0, int(id)) {
		runtime.Gosched()
	}
}

// markTaskComplete sets the task's completion bit and releases its
// bookkeeping reservation. Bit-set must happen after promise fulfillment;
// callers (singleTask.run, loopTask.run) already enforce that ordering.
func (m *ThreadManager) markTaskComplete(id int64) {
	m.status.TestAndSet(int(id), true)
	if a := m.arenaAt(id); a != nil {
		a.Deallocate(nil, taskBookkeepingSize, 8)
	}
}

func (m *ThreadManager) arenaAt(id int64) *MonotonicArena {
	if id < 0 || int(id) >= len(m.arenas) {
		return nil
	}
	return m.arenas[id]
}

// reserveTaskBookkeeping tries the task's dedicated arena up to four
// times, then falls back to the upstream resource. Because arenas here
// are released in bulk at generation rollover rather than per-task, every
// attempt after the first only matters across rollovers; the retry loop
// is kept because a concurrent clearGeneration can still land mid-enqueue.
func (m *ThreadManager) reserveTaskBookkeeping(id int64) {
	arena := m.arenaAt(id)
	if arena == nil {
		return
	}
	for attempt := 0; attempt < 4; attempt++ {
		if _, err := arena.Allocate(taskBookkeepingSize, 8); err == nil {
			return
		}
		runtime.Gosched()
	}
	_, _ = m.resource.Allocate(taskBookkeepingSize, 8)
}

// issueTaskID returns the next task id, rolling the generation over first
// if the counter has exhausted the status bitset or every previously
// issued id has already completed.
func (m *ThreadManager) issueTaskID() int64 {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	next := m.taskIDCounter.v.Load()
	if next >= statusBitsetCapacity || (next > 0 && m.status.IsAllRange(0, int(next))) {
		m.clearGeneration()
		next = 0
	}
	m.taskIDCounter.v.Store(next + 1)
	return next
}

// clearGeneration waits for every in-flight task to finish, then resets
// the id counter and status bitset and releases every per-task arena.
// Callers must hold idMu.
func (m *ThreadManager) clearGeneration() {
	m.WaitForCompletion()
	m.taskIDCounter.v.Store(0)
	m.status.Reset(false)
	for _, a := range m.arenas {
		a.Release()
	}
	m.logger.Info().Log("task id generation rolled over")
}

// WaitForCompletion spins, yielding, until no task is outstanding, the
// queue is drained, and every worker is parked. It gives no
// happens-before guarantee with queued tasks' side effects; callers that
// need one must use the returned futures.
//
// numOfTasks is checked in addition to the queue and the active-worker
// count because Enqueue/EnqueueLoop increment numOfTasks before they
// place the item on the queue: without this check, a producer observed
// strictly between its numOfTasks bump and its queue.Enqueue call would
// be invisible to this loop (queue still empty, every worker still
// parked), letting a concurrent clearGeneration reset the status bitset
// and release the arenas out from under a task that has not run yet.
func (m *ThreadManager) WaitForCompletion() {
	for {
		if m.numOfTasks.v.Load() == 0 && m.queue.Size() == 0 && m.numOfActiveWorkers.v.Load() == 0 {
			return
		}
		runtime.Gosched()
	}
}

// SetCapacity drains the manager, resizes the queue, and clears all
// generation state (id counter, status bitset, arenas).
func (m *ThreadManager) SetCapacity(capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WaitForCompletion()
	m.idMu.Lock()
	m.queue = NewLockFreeQueue[WorkerItem](capacity)
	m.taskIDCounter.v.Store(0)
	m.status.Reset(false)
	for _, a := range m.arenas {
		a.Release()
	}
	m.idMu.Unlock()
	m.logger.Info().Int("capacity", capacity).Log("thread manager capacity changed")
	return nil
}

// Close signals shutdown to every worker and waits for them to exit.
// Outstanding queued tasks are abandoned without running; their futures
// are never fulfilled.
func (m *ThreadManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.numOfTasks.v.Store(stateShutdown)
	m.gate.NotifyAll()
	m.wg.Wait()
	m.logger.Info().Log("thread manager shut down")
}

// Enqueue submits a single callable, returning its Future. fn receives
// the id of the worker that runs it.
func Enqueue[T any](m *ThreadManager, fn func(threadID int64) T, opts ...EnqueueOption) (*Future[T], error) {
	cfg := resolveEnqueueOptions(opts)
	id := m.issueTaskID()
	m.reserveTaskBookkeeping(id)

	task := newSingleTask[T](id, cfg.waitForPrecedence, m, fn)
	future := task.getFuture()

	m.numOfTasks.v.Add(1)
	if !m.queue.Enqueue(WorkerItem{Task: task, Offset: 0}) {
		m.numOfTasks.v.Add(-1)
		m.gate.NotifyAll()
		m.logger.Warning().Int64("task_id", id).Log("enqueue overflow")
		return future, &ContainerOverflow[TaskExceptionData]{
			Reason: "queue full",
			Data:   TaskExceptionData{Task: task, BeginOffset: 0, NumIterations: 1},
		}
	}
	m.gate.NotifyOne()
	return future, nil
}

// EnqueueLoop submits numIterations = end-begin invocations of fn, one
// per offset in [begin, end), returning a Future that completes once
// every iteration has run (or been accounted for).
func EnqueueLoop(m *ThreadManager, begin, end int64, fn func(iteration, threadID int64), opts ...EnqueueOption) (*Future[Unit], error) {
	cfg := resolveEnqueueOptions(opts)
	if end < begin {
		end = begin
	}
	numItems := end - begin

	id := m.issueTaskID()
	m.reserveTaskBookkeeping(id)
	task := newLoopTask(id, cfg.waitForPrecedence, m, begin, numItems, fn)
	future := task.getFuture()

	if numItems == 0 {
		task.promise.fulfill(Unit{}, nil)
		m.markTaskComplete(id)
		return future, nil
	}

	m.numOfTasks.v.Add(numItems)
	for i := int64(0); i < numItems; i++ {
		if !m.queue.Enqueue(WorkerItem{Task: task, Offset: i}) {
			remaining := numItems - i
			m.numOfTasks.v.Add(-remaining)
			m.gate.NotifyAll()
			m.logger.Warning().Int64("task_id", id).Int64("remaining", remaining).Log("loop enqueue overflow")
			return future, &ContainerOverflow[TaskExceptionData]{
				Reason: "queue full",
				Data:   TaskExceptionData{Task: task, BeginOffset: i, NumIterations: remaining},
			}
		}
		m.gate.NotifyOne()
	}
	return future, nil
}

// RunPending finishes the unqueued tail of an overflowed enqueue inline
// on the calling goroutine, fulfilling the same future normal worker
// execution would have. threadID is reported to the payload as-is; pass
// unmanagedThreadID's moral equivalent, or any caller-meaningful value,
// since this does not run on a pool worker.
func RunPending(data TaskExceptionData, threadID int64) {
	for i := int64(0); i < data.NumIterations; i++ {
		data.Task.run(threadID, data.BeginOffset+i)
	}
}
