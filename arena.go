package zcore

import (
	"sync/atomic"
	"unsafe"
)

// MonotonicArena is a bump allocator over one owned storage block. It never
// reclaims individual allocations: Deallocate only decrements a use count,
// and bytes are only reclaimed in bulk by Release, which also invalidates
// every pointer previously handed out.
//
// Size and Align are ordinary constructor arguments rather than compile-time
// constants: Go generics have no const-generic equivalent of a non-type
// template parameter.
type MonotonicArena struct {
	upstream  MemoryResource
	storage   unsafe.Pointer
	size      uintptr
	alignment uintptr
	used      atomic.Uintptr
	useCount  atomic.Int64
}

// NewMonotonicArena allocates one size-byte block aligned to alignment via
// upstream, to be bump-allocated from.
func NewMonotonicArena(size, alignment uintptr, upstream MemoryResource) (*MonotonicArena, error) {
	if alignment == 0 {
		alignment = 1
	}
	ptr, err := upstream.Allocate(size, alignment)
	if err != nil {
		return nil, wrapError("zcore: monotonic arena storage allocation failed", err)
	}
	return &MonotonicArena{
		upstream:  upstream,
		storage:   ptr,
		size:      size,
		alignment: alignment,
	}, nil
}

// Capacity returns the total number of bytes owned by the arena.
func (a *MonotonicArena) Capacity() uintptr { return a.size }

// Size returns the number of bytes bump-allocated so far (including
// alignment padding), since the last Release.
func (a *MonotonicArena) Size() uintptr { return a.used.Load() }

// Alignment returns the arena's base alignment.
func (a *MonotonicArena) Alignment() uintptr { return a.alignment }

// IsOccupied reports whether any allocation from this arena has not yet
// been matched by a Deallocate.
func (a *MonotonicArena) IsOccupied() bool { return a.useCount.Load() > 0 }

// Allocate returns a sub-region of the arena's storage block, aligned to
// alignment, or *BadAllocation if the remaining capacity is insufficient.
// The CAS loop: read used, compute the alignment adjustment at the
// current offset, try to claim [used, used+adjust+size) before anyone
// else does.
func (a *MonotonicArena) Allocate(size, alignment uintptr) (unsafe.Pointer, error) {
	if alignment == 0 {
		alignment = 1
	}
	for {
		oldUsed := a.used.Load()
		addr := uintptr(a.storage) + oldUsed
		adjust := uintptr(0)
		if rem := addr % alignment; rem != 0 {
			adjust = alignment - rem
		}
		newUsed := oldUsed + adjust + size
		if newUsed > a.size {
			return nil, &BadAllocation{Size: size, Alignment: alignment, Reason: "monotonic arena exhausted"}
		}
		if a.used.CompareAndSwap(oldUsed, newUsed) {
			a.useCount.Add(1)
			return unsafe.Add(a.storage, oldUsed+adjust), nil
		}
	}
}

// Deallocate decrements the arena's use count only; bytes are never
// reclaimed until Release.
func (a *MonotonicArena) Deallocate(ptr unsafe.Pointer, size, alignment uintptr) {
	a.useCount.Add(-1)
}

// Release resets the arena to empty, reusing the same storage block. Any
// pointer returned by a prior Allocate becomes invalid.
func (a *MonotonicArena) Release() {
	a.useCount.Store(0)
	a.used.Store(0)
}

// IsEqual reports whether other is a *MonotonicArena backed by the same
// storage block.
func (a *MonotonicArena) IsEqual(other MemoryResource) bool {
	o, ok := other.(*MonotonicArena)
	return ok && o.storage == a.storage
}
