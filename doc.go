// Package zcore provides a concurrency and memory core: a set of cooperating,
// lock-free data structures and a work-stealing thread manager, built atop
// atomics alone.
//
// # Architecture
//
// The core is layered, leaves first:
//
//	MemoryResource -> AtomicBitset -> MonotonicArena -> FixedPool[T] ->
//	    LockFreeQueue[T] -> PackagedTask/Future[T] -> ThreadManager
//
// [AtomicBitset] is a fixed-size bit array partitioned into cache-line-aligned
// chunks, with per-bit and ranged atomic operations. [FixedPool] is a
// slab allocator of N slots of a single type T, backed by an AtomicBitset of
// occupancy bits. [MonotonicArena] is a bump allocator over one owned storage
// block, with bulk reset. [ThreadManager] owns a pool of worker goroutines and
// a bounded MPMC queue, dispatching both single tasks and data-parallel loop
// tasks, honoring precedence between task IDs, and recovering from queue
// overflow without losing work.
//
// # Thread Safety
//
//   - [Enqueue] and [EnqueueLoop] are safe to call from any goroutine,
//     including from within a running task.
//   - [Future.Get] and [Future.Wait] block the calling goroutine until the
//     task's promise is fulfilled.
//   - [AtomicBitset] operations are individually atomic per touched word; no
//     cross-word atomicity is implied.
//
// # Execution Model
//
// Worker goroutines run to completion once a task is dequeued; there is no
// cooperative preemption within a task. Idle workers park on a wake gate, a
// generation counter kept apart from the manager's task count, using an
// OS-level wait/wake primitive; they are woken one at a time on enqueue, and
// all together on queue overflow and on Close.
//
// # Usage
//
//	tm, err := zcore.NewThreadManager(0, zcore.NewHeapResource())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tm.Close()
//
//	future, err := zcore.Enqueue(tm, func(threadID int64) int {
//	    return int(threadID) * 2
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := future.Get()
//
// # Error Types
//
// The package exposes two structured error types at its boundary:
// [BadAllocation] for any allocator failure, and [ContainerOverflow] for
// queue overflow during enqueue, carrying enough state for the caller to
// finish the unqueued tail inline. Both implement [error] and Is-based
// matching; [BadAllocation] also unwraps to its Cause via [errors.Unwrap].
package zcore
