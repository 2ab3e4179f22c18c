package zcore

import (
	"fmt"
	"sync/atomic"
)

// PackagedTask is a type-erased unit of work with a result channel and
// precedence metadata. It is shared between the enqueuing caller's future
// and every queued WorkerItem that references it.
//
// In a systems language without a garbage collector this maps to a
// trait/interface plus reference counting so the last owner runs the
// fulfilling destructor; here the runtime's GC keeps the task alive as long
// as any WorkerItem or Future references it, and loop tasks use an explicit
// countdown (see loopTask) to detect "last worker item" without a
// destructor hook.
type PackagedTask interface {
	// run executes this task's payload for the given worker-item's
	// iteration offset (ignored for single tasks), honoring precedence,
	// and fulfills the task's promise exactly once overall.
	run(threadID int64, iterationOffset int64)
	// taskID returns the task ID this packaged task was issued under.
	taskID() int64
}

// TaskExceptionData is carried by a ContainerOverflow error raised during
// enqueue: the shared task plus the offset range that could not be queued,
// sufficient for the caller to finish the work inline or resubmit.
// BeginOffset is relative to the task's own indexing (0 for a single task,
// the first un-enqueued loop iteration offset otherwise), matching the
// offset RunPending passes straight through to PackagedTask.run.
type TaskExceptionData struct {
	Task          PackagedTask
	BeginOffset   int64
	NumIterations int64
}

// runGuarded invokes fn, recovering any panic into an error so that a
// panicking payload still reaches promise fulfillment and status-bit
// update: a task that panics during run must still mark its bit in the
// status bitset and fail its promise.
func runGuarded(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("zcore: task panicked: %v", r)
		}
	}()
	fn()
	return nil
}

// singleTask is the PackagedTask variant invoked exactly once, returning T.
type singleTask[T any] struct {
	id                 int64
	waitForPrecedence  bool
	manager            *ThreadManager
	fn                 func(threadID int64) T
	promise            *promise[T]
	futureTaken        bool
}

func newSingleTask[T any](id int64, waitForPrecedence bool, manager *ThreadManager, fn func(int64) T) *singleTask[T] {
	return &singleTask[T]{
		id:                id,
		waitForPrecedence: waitForPrecedence,
		manager:           manager,
		fn:                fn,
		promise:           newPromise[T](id),
	}
}

func (t *singleTask[T]) taskID() int64 { return t.id }

func (t *singleTask[T]) run(threadID int64, _ int64) {
	if t.waitForPrecedence {
		t.manager.waitForPrecedence(t.id)
	}
	var result T
	err := runGuarded(func() {
		result = t.fn(threadID)
	})
	t.promise.fulfill(result, err)
	t.manager.markTaskComplete(t.id)
}

// getFuture hands out the future exactly once.
func (t *singleTask[T]) getFuture() *Future[T] {
	if t.futureTaken {
		return nil
	}
	t.futureTaken = true
	return t.promise.future
}

// loopTask is the PackagedTask variant invoked once per iteration offset,
// with the promise fulfilled only once every scheduled invocation has
// either run or been accounted for, tracked via an explicit countdown.
type loopTask struct {
	id                int64
	waitForPrecedence bool
	manager           *ThreadManager
	fn                func(iteration int64, threadID int64)
	begin             int64
	remaining         atomic.Int64
	failure           atomic.Pointer[error]
	promise           *promise[Unit]
	futureTaken       bool
}

func newLoopTask(id int64, waitForPrecedence bool, manager *ThreadManager, begin int64, numItems int64, fn func(int64, int64)) *loopTask {
	t := &loopTask{
		id:                id,
		waitForPrecedence: waitForPrecedence,
		manager:           manager,
		fn:                fn,
		begin:             begin,
		promise:           newPromise[Unit](id),
	}
	t.remaining.Store(numItems)
	return t
}

func (t *loopTask) taskID() int64 { return t.id }

func (t *loopTask) run(threadID int64, iterationOffset int64) {
	if t.waitForPrecedence {
		t.manager.waitForPrecedence(t.id)
	}
	if err := runGuarded(func() {
		t.fn(t.begin+iterationOffset, threadID)
	}); err != nil {
		t.failure.CompareAndSwap(nil, &err)
	}
	if t.remaining.Add(-1) == 0 {
		var err error
		if p := t.failure.Load(); p != nil {
			err = *p
		}
		t.promise.fulfill(Unit{}, err)
		t.manager.markTaskComplete(t.id)
	}
}

func (t *loopTask) getFuture() *Future[Unit] {
	if t.futureTaken {
		return nil
	}
	t.futureTaken = true
	return t.promise.future
}

// WorkerItem is a (task, iteration-offset) pair placed in the queue once
// per scheduled invocation: one for single tasks, one per iteration for
// loop tasks.
type WorkerItem struct {
	Task   PackagedTask
	Offset int64
}

// Run executes the worker item on behalf of thread threadID.
func (w WorkerItem) Run(threadID int64) {
	w.Task.run(threadID, w.Offset)
}
