package binschema

import "github.com/klauspost/cpuid/v2"

// bulkCopyChunkBytes sizes the chunks chunkedCopy splits very large packed
// regions into, derived from the running CPU's actual cache line size
// rather than a hard-coded constant - grounded on dynssz's use of
// klauspost/cpuid/v2 to tune its own chunked-hashing decisions to the host
// CPU instead of guessing.
var bulkCopyChunkBytes = computeBulkCopyChunkBytes()

func computeBulkCopyChunkBytes() int {
	line := cpuid.CPU.CacheLine
	if line <= 0 {
		line = 64
	}
	return line * 1024
}

// bulkCopyThreshold is the region size below which a single copy() call is
// already as fast as a chunked one; chunking only pays for itself on the
// packed bulk-copy fast path (spec.md §3.4) once a struct/array/vector's
// in-memory span is large enough to fall out of cache between the source
// read and the destination write.
const bulkCopyThreshold = 1 << 20 // 1 MiB

// chunkedCopy copies src into dst. Below bulkCopyThreshold it's a plain
// copy(); above it, the copy is split into bulkCopyChunkBytes-sized pieces
// so a stall partway through (page fault, cache eviction) doesn't force a
// single unbroken multi-megabyte memmove.
func chunkedCopy(dst, src []byte) int {
	if len(src) <= bulkCopyThreshold {
		return copy(dst, src)
	}
	total := 0
	for total < len(src) {
		end := total + bulkCopyChunkBytes
		if end > len(src) {
			end = len(src)
		}
		n := copy(dst[total:end], src[total:end])
		total += n
		if n == 0 {
			break
		}
	}
	return total
}
