package zcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMonotonicArenaExhaustion(t *testing.T) {
	// S3: Arena<128,16>. Four (32,16) allocations succeed; a fifth fails;
	// release; one (16,16) allocation succeeds.
	a, err := NewMonotonicArena(128, 16, NewHeapResource())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := a.Allocate(32, 16)
		require.NoError(t, err)
	}

	_, err = a.Allocate(32, 16)
	require.Error(t, err)
	var bad *BadAllocation
	require.ErrorAs(t, err, &bad)

	a.Release()
	require.False(t, a.IsOccupied())

	_, err = a.Allocate(16, 16)
	require.NoError(t, err)
	require.EqualValues(t, 16, a.Size())
}

func TestMonotonicArenaBumpMonotonicity(t *testing.T) {
	a, err := NewMonotonicArena(4096, 16, NewHeapResource())
	require.NoError(t, err)

	base := uintptr(0)
	last := uintptr(0)
	for i := 0; i < 50; i++ {
		ptr, err := a.Allocate(17, 8)
		require.NoError(t, err)
		addr := uintptr(ptr)
		if base == 0 {
			base = addr
		}
		require.GreaterOrEqual(t, addr, base)
		require.Less(t, addr, base+a.Capacity())
		require.Zero(t, addr%8)
		require.GreaterOrEqual(t, a.Size(), last)
		last = a.Size()
	}
}

func TestMonotonicArenaIdentity(t *testing.T) {
	a, err := NewMonotonicArena(64, 8, NewHeapResource())
	require.NoError(t, err)
	b, err := NewMonotonicArena(64, 8, NewHeapResource())
	require.NoError(t, err)

	require.True(t, a.IsEqual(a))
	require.False(t, a.IsEqual(b))
}
