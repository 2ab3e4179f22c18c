package zcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicBitsetCounting(t *testing.T) {
	// S1: bitset of size 200, set {0,1,63,64,199}.
	b, err := NewAtomicBitset(200, NewHeapResource())
	require.NoError(t, err)

	for _, pos := range []int{0, 1, 63, 64, 199} {
		prev := b.TestAndSet(pos, true)
		require.False(t, prev)
	}

	require.Equal(t, 5, b.Count())
	require.Equal(t, 3, b.CountRange(0, 64))
	require.Equal(t, 1, b.CountRange(64, 128))
	require.True(t, b.IsNoneRange(65, 199))
	require.True(t, b.Test(199))
}

func TestAtomicBitsetRoundTrip(t *testing.T) {
	b, err := NewAtomicBitset(513, NewHeapResource())
	require.NoError(t, err)

	want := make(map[int]bool)
	positions := []int{0, 1, 2, 63, 64, 65, 127, 128, 256, 300, 511, 512}
	for _, p := range positions {
		v := p%2 == 0
		want[p] = v
		b.TestAndSet(p, v)
	}

	count := 0
	for p, v := range want {
		require.Equal(t, v, b.Test(p), "position %d", p)
		if v {
			count++
		}
	}
	require.Equal(t, count, b.CountRange(0, 513))
}

func TestAtomicBitsetRangeMasks(t *testing.T) {
	b, err := NewAtomicBitset(128, NewHeapResource())
	require.NoError(t, err)

	for i := 0; i < 128; i += 3 {
		b.TestAndSet(i, true)
	}

	for begin := 0; begin <= 128; begin += 7 {
		for end := begin; end <= 128; end += 11 {
			expected := 0
			for i := begin; i < end; i++ {
				if b.Test(i) {
					expected++
				}
			}
			require.Equal(t, expected, b.CountRange(begin, end), "[%d,%d)", begin, end)
			require.Equal(t, expected == end-begin, b.IsAllRange(begin, end))
			require.Equal(t, expected == 0, b.IsNoneRange(begin, end))
			require.Equal(t, expected != 0, b.IsAnyRange(begin, end))
		}
	}
}

func TestAtomicBitsetResetRange(t *testing.T) {
	b, err := NewAtomicBitset(256, NewHeapResource())
	require.NoError(t, err)

	b.Reset(true)
	require.True(t, b.IsAll())

	b.ResetRange(64, 192, false)
	require.True(t, b.IsAllRange(0, 64))
	require.True(t, b.IsNoneRange(64, 192))
	require.True(t, b.IsAllRange(192, 256))
}
