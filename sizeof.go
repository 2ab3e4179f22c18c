package zcore

// Layout constants shared by AtomicBitset, FixedPool and ThreadManager.
const (
	// sizeOfCacheLine is the size, in bytes, of a CPU cache line.
	// 64 bytes is standard for x86-64; 128 bytes is standard for Apple
	// Silicon and other ARM64 parts. We use the larger common value so
	// padding computed against it is correct on either family.
	sizeOfCacheLine = 128

	// sizeOfAtomicInt64 is the size in bytes of an atomic.Int64 value.
	sizeOfAtomicInt64 = 8

	// chunkAlignment is the alignment (and minimum size) of one AtomicBitset
	// chunk; ThreadManager uses the same value as the padding unit for its
	// hot atomics so they line up with chunk boundaries.
	chunkAlignment = 2 * sizeOfCacheLine

	// blockBits is the bit-width of one block (word) within a chunk.
	blockBits = 64

	// chunkBits is the number of bits held by a single chunk.
	chunkBits = 8 * chunkAlignment
)
