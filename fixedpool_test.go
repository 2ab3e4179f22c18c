package zcore

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestFixedPoolUniquenessAndConservation(t *testing.T) {
	// S2: pool of uint64 with capacity 4, four goroutines each allocate and
	// deallocate one slot, 100,000 iterations.
	pool, err := NewFixedPool[uint64](NewHeapResource())
	require.NoError(t, err)
	require.NoError(t, pool.SetCapacity(4))

	const workers = 4
	const iterations = 100_000

	var wg sync.WaitGroup
	var mu sync.Mutex
	held := make(map[unsafe.Pointer]bool)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				ptr, err := pool.Allocate(8, 8)
				require.NoError(t, err)

				mu.Lock()
				require.False(t, held[ptr])
				held[ptr] = true
				mu.Unlock()

				mu.Lock()
				delete(held, ptr)
				mu.Unlock()

				pool.Deallocate(ptr, 8, 8)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 0, pool.Count())
}

func TestFixedPoolBoundsAndAlignment(t *testing.T) {
	pool, err := NewFixedPool[uint64](NewHeapResource())
	require.NoError(t, err)
	require.NoError(t, pool.SetCapacity(8))

	var ptrs []unsafe.Pointer
	for i := 0; i < 8; i++ {
		ptr, err := pool.Allocate(8, 8)
		require.NoError(t, err)
		require.GreaterOrEqual(t, uintptr(ptr), uintptr(pool.Data()))
		require.Less(t, uintptr(ptr), uintptr(pool.Data())+8*8)
		require.Zero(t, uintptr(ptr)%8)
		ptrs = append(ptrs, ptr)
	}

	_, err = pool.Allocate(8, 8)
	require.Error(t, err)
	var bad *BadAllocation
	require.ErrorAs(t, err, &bad)

	for _, ptr := range ptrs {
		pool.Deallocate(ptr, 8, 8)
	}
	require.Equal(t, 0, pool.Count())
}

func TestFixedPoolRejectsOversizeRequest(t *testing.T) {
	pool, err := NewFixedPool[uint64](NewHeapResource())
	require.NoError(t, err)

	_, err = pool.Allocate(16, 8)
	require.Error(t, err)
}
