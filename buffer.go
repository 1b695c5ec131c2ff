package binschema

import (
	"encoding/binary"
	"math"
	"sync"
)

// Buffer accumulates an exact or versioned write in native byte order
// (spec.md §6.1: the wire format carries no endianness marker, no varint
// encoding, no length-prefix-per-scalar - fixed-width fields are written at
// their natural size). Supports only append, mirroring the teacher's
// append-only Buffer in buffer.go.
type Buffer struct {
	Bytes []byte

	// Ops counts primitive/bulk write operations performed against this
	// buffer, for callers that want to compare against a budget
	// (spec.md §3.4 mentions per-operation cost as the basis for the
	// packed bulk-copy optimization; Ops lets tests assert it was taken).
	Ops int
}

var bufferPool = sync.Pool{
	New: func() any { return &Buffer{} },
}

// NewBufferFromPool obtains a reset Buffer from the pool. Call ReturnToPool when finished.
func NewBufferFromPool() *Buffer {
	b := bufferPool.Get().(*Buffer)
	b.Reset()
	return b
}

// NewBufferFromPoolWithCap acquires a pooled Buffer with at least size bytes of capacity.
func NewBufferFromPoolWithCap(size int) *Buffer {
	b := bufferPool.Get().(*Buffer)
	if cap(b.Bytes) < size {
		b.Bytes = make([]byte, 0, size)
	} else {
		b.Reset()
	}
	return b
}

// ReturnToPool releases the buffer back to the pool. Using it afterward is undefined.
func (b *Buffer) ReturnToPool() {
	bufferPool.Put(b)
}

// Reset clears the buffer's contents but keeps its backing array.
func (b *Buffer) Reset() {
	b.Bytes = b.Bytes[:0]
	b.Ops = 0
}

func (b *Buffer) AppendBytes(p []byte) {
	b.Bytes = append(b.Bytes, p...)
	b.Ops++
}

func (b *Buffer) AppendU8(v uint8) {
	b.Bytes = append(b.Bytes, v)
	b.Ops++
}

func (b *Buffer) AppendU16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.Bytes = append(b.Bytes, tmp[:]...)
	b.Ops++
}

func (b *Buffer) AppendU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.Bytes = append(b.Bytes, tmp[:]...)
	b.Ops++
}

func (b *Buffer) AppendU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.Bytes = append(b.Bytes, tmp[:]...)
	b.Ops++
}

func (b *Buffer) AppendI8(v int8)   { b.AppendU8(uint8(v)) }
func (b *Buffer) AppendI16(v int16) { b.AppendU16(uint16(v)) }
func (b *Buffer) AppendI32(v int32) { b.AppendU32(uint32(v)) }
func (b *Buffer) AppendI64(v int64) { b.AppendU64(uint64(v)) }

func (b *Buffer) AppendF32(v float32) { b.AppendU32(math.Float32bits(v)) }
func (b *Buffer) AppendF64(v float64) { b.AppendU64(math.Float64bits(v)) }

// AppendPrimitive writes one primitive value addressed by raw bit pattern,
// used by the exact/versioned writers' category dispatch tables.
func (b *Buffer) AppendPrimitive(cat TypeCategory, raw uint64) {
	switch cat {
	case CategoryU8, CategoryI8:
		b.AppendU8(uint8(raw))
	case CategoryU16, CategoryI16:
		b.AppendU16(uint16(raw))
	case CategoryU32, CategoryI32, CategoryF32:
		b.AppendU32(uint32(raw))
	case CategoryU64, CategoryI64, CategoryF64:
		b.AppendU64(raw)
	default:
		panic("binschema: AppendPrimitive called with non-primitive category")
	}
}
