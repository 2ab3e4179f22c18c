package zcore

import (
	"unsafe"
)

// MemoryResource is the external allocator interface consumed by every
// container in this package, modeled on the standard polymorphic memory
// resource: callers supply an implementation, and [FixedPool] and
// [MonotonicArena] in turn implement it themselves so they can be chained
// into larger allocation topologies.
type MemoryResource interface {
	// Allocate returns size bytes aligned to alignment, or a *BadAllocation.
	Allocate(size, alignment uintptr) (unsafe.Pointer, error)
	// Deallocate releases memory previously returned by Allocate with the
	// same size and alignment.
	Deallocate(ptr unsafe.Pointer, size, alignment uintptr)
	// IsEqual reports whether other refers to the same underlying resource.
	IsEqual(other MemoryResource) bool
}

// HeapResource is a MemoryResource backed directly by the Go heap. It is
// supplied so the package is usable without a caller-provided resource.
type HeapResource struct{}

// NewHeapResource returns a HeapResource. All instances are equivalent.
func NewHeapResource() *HeapResource {
	return &HeapResource{}
}

// Allocate returns a fresh, zeroed, size-byte region aligned to alignment.
// Go's allocator cannot be asked for caller-chosen over-alignment directly,
// so over-aligned requests are satisfied by allocating extra slack and
// slicing an aligned pointer from it.
func (r *HeapResource) Allocate(size, alignment uintptr) (unsafe.Pointer, error) {
	if alignment == 0 {
		alignment = 1
	}
	if size == 0 {
		return nil, &BadAllocation{Size: size, Alignment: alignment, Reason: "size must be greater than zero"}
	}
	buf := make([]byte, size+alignment)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	adjust := (alignment - (base % alignment)) % alignment
	// The returned pointer is an interior pointer into buf; Go's GC keeps
	// the whole backing array alive as long as any interior pointer into
	// it is reachable, so buf itself need not be retained separately.
	return unsafe.Add(unsafe.Pointer(unsafe.SliceData(buf)), adjust), nil
}

// Deallocate is a no-op: memory returned by Allocate is ordinary
// garbage-collected Go memory.
func (r *HeapResource) Deallocate(ptr unsafe.Pointer, size, alignment uintptr) {}

// IsEqual reports whether other is also a *HeapResource; every HeapResource
// is interchangeable with every other.
func (r *HeapResource) IsEqual(other MemoryResource) bool {
	_, ok := other.(*HeapResource)
	return ok
}
