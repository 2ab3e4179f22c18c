package zcore

import (
	"math/bits"
	"sync/atomic"
	"unsafe"
)

// invalidPoolIndex is returned internally by the bounded free-slot search
// when no free slot could be claimed within the search budget.
const invalidPoolIndex = -1

// FixedPool is a slab of N slots of type T, with lock-free allocation and
// deallocation backed by an [AtomicBitset] of occupancy bits. Slots are
// never moved: a pointer handed out by Allocate remains stable until its
// matching Deallocate.
type FixedPool[T any] struct {
	resource  MemoryResource
	storage   unsafe.Pointer
	used      *AtomicBitset
	elemSize  uintptr
	elemAlign uintptr
	capacity  int
	count     atomic.Int64
}

// NewFixedPool creates a pool of capacity 1, to be grown with SetCapacity.
func NewFixedPool[T any](resource MemoryResource) (*FixedPool[T], error) {
	var zero T
	p := &FixedPool[T]{
		resource:  resource,
		elemSize:  unsafe.Sizeof(zero),
		elemAlign: uintptr(unsafe.Alignof(zero)),
	}
	if err := p.SetCapacity(1); err != nil {
		return nil, err
	}
	return p, nil
}

// SetCapacity resizes the slot storage and inner bitset to n slots and
// resets the outstanding-allocation counter. Any slots previously handed
// out are invalidated.
func (p *FixedPool[T]) SetCapacity(n int) error {
	if n <= 0 {
		n = 1
	}
	size := uintptr(n) * p.elemSize
	if size == 0 {
		size = uintptr(n)
	}
	ptr, err := p.resource.Allocate(size, p.elemAlign)
	if err != nil {
		return wrapError("zcore: fixed pool storage allocation failed", err)
	}
	used, err := NewAtomicBitset(n, p.resource)
	if err != nil {
		return err
	}
	p.storage = ptr
	p.capacity = n
	p.used = used
	p.count.Store(0)
	return nil
}

// Count returns the number of outstanding allocations.
func (p *FixedPool[T]) Count() int { return int(p.count.Load()) }

// Capacity returns the number of slots.
func (p *FixedPool[T]) Capacity() int { return p.capacity }

// Data returns a pointer to the start of the slot storage.
func (p *FixedPool[T]) Data() unsafe.Pointer { return p.storage }

// Clear releases every outstanding allocation without running any
// destructor; callers must not use pointers obtained before Clear.
func (p *FixedPool[T]) Clear() {
	p.count.Store(0)
	p.used.Reset(false)
}

// permuteIndex scatters consecutive counter values across the bitset's
// cache lines, per fixed_array_resource-inl.hpp: shift = bit_width(8 *
// cache line size), and when shift < bit_width(N), rotate i left by shift
// within an n_bits-wide word, falling back to the raw index if the result
// would land outside [0, N).
func (p *FixedPool[T]) permuteIndex(i int) int {
	n := p.capacity
	if n <= 1 {
		return i
	}
	nBits := bits.Len(uint(n))
	shift := bits.Len(uint(8 * sizeOfCacheLine))
	if shift >= nBits {
		return i
	}
	mask := (1 << nBits) - 1
	rotated := ((i << shift) | (i >> (nBits - shift))) & mask
	if rotated >= n {
		return i
	}
	return rotated
}

// findAndGetOwnership searches for a free slot starting at the word
// containing hint, blotting out positions below hint within that first
// word, and bounds the total number of word-scans at two full passes
// around the ring before giving up.
func (p *FixedPool[T]) findAndGetOwnership(hint int) int {
	numWords := (p.capacity + blockBits - 1) / blockBits
	if numWords == 0 {
		return invalidPoolIndex
	}
	ringBits := numWords * blockBits

	wordPos := hint &^ (blockBits - 1)
	offset := hint - wordPos
	mask := makeMask(0, offset)

	for attempt := 0; attempt < 2*numWords; attempt++ {
		word := p.used.getBlockBits(wordPos) | mask
		nFree := bits.TrailingZeros64(^word)
		candidate := wordPos + nFree
		if nFree < blockBits && candidate < p.capacity {
			if !p.used.TestAndSet(candidate, true) {
				return candidate
			}
		}
		mask = 0
		wordPos = (wordPos + blockBits) % ringBits
	}
	return invalidPoolIndex
}

// Allocate reserves one slot and returns a pointer to it. size must be no
// greater than sizeof(T) and alignment no greater than alignof(T).
func (p *FixedPool[T]) Allocate(size, alignment uintptr) (unsafe.Pointer, error) {
	if size > p.elemSize || alignment > p.elemAlign {
		return nil, &BadAllocation{Size: size, Alignment: alignment, Reason: "request exceeds element size or alignment"}
	}

	old := p.count.Add(1) - 1
	if int(old) >= p.capacity {
		p.count.Add(-1)
		return nil, &BadAllocation{Size: size, Alignment: alignment, Reason: "allocation count exceeded"}
	}

	hint := p.permuteIndex(int(old))
	idx := p.findAndGetOwnership(hint)
	if idx == invalidPoolIndex {
		p.count.Add(-1)
		return nil, &BadAllocation{Size: size, Alignment: alignment, Reason: "fatal: appropriate storage not found"}
	}

	return unsafe.Add(p.storage, uintptr(idx)*p.elemSize), nil
}

// Deallocate releases the slot whose address equals ptr.
func (p *FixedPool[T]) Deallocate(ptr unsafe.Pointer, size, alignment uintptr) {
	idx := (uintptr(ptr) - uintptr(p.storage)) / p.elemSize
	p.used.TestAndSet(int(idx), false)
	p.count.Add(-1)
}

// IsEqual reports whether other is the same *FixedPool[T] instance.
func (p *FixedPool[T]) IsEqual(other MemoryResource) bool {
	o, ok := other.(*FixedPool[T])
	return ok && o == p
}
