package binschema

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Cursor provides sequential, bounds-checked read access to an encoded
// stream. Unlike the teacher's Reader (reader.go), which panics on a short
// buffer, Cursor surfaces ErrStreamExhausted as an ordinary error - spec.md
// §7 requires read failures to propagate immediately as errors, not panics,
// since a versioned read routinely runs against untrusted/foreign data.
type Cursor struct {
	bytes    []byte
	position int
	mark     int // saved position, restored by Rewind

	// Ops mirrors Buffer.Ops for the read side.
	Ops int
}

// NewCursor wraps b for sequential reading from the start.
func NewCursor(b []byte) *Cursor {
	return &Cursor{bytes: b}
}

// Position reports the current read offset.
func (c *Cursor) Position() int { return c.position }

// Remaining reports how many bytes are left unread.
func (c *Cursor) Remaining() int { return len(c.bytes) - c.position }

// Mark records the current position for a later Rewind.
func (c *Cursor) Mark() { c.mark = c.position }

// Rewind restores the position saved by the last Mark.
func (c *Cursor) Rewind() { c.position = c.mark }

// Skip advances the cursor by n bytes without copying, failing if that runs
// past the end of the stream.
func (c *Cursor) Skip(n int) bool {
	if n < 0 || c.position+n > len(c.bytes) {
		return false
	}
	c.position += n
	return true
}

func (c *Cursor) take(n int) ([]byte, bool) {
	if n < 0 || c.position+n > len(c.bytes) {
		return nil, false
	}
	p := c.bytes[c.position : c.position+n]
	c.position += n
	c.Ops++
	return p, true
}

func (c *Cursor) ReadBytes(n int) ([]byte, bool) {
	return c.take(n)
}

func (c *Cursor) ReadU8() (uint8, bool) {
	p, ok := c.take(1)
	if !ok {
		return 0, false
	}
	return p[0], true
}

func (c *Cursor) ReadU16() (uint16, bool) {
	p, ok := c.take(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(p), true
}

func (c *Cursor) ReadU32() (uint32, bool) {
	p, ok := c.take(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(p), true
}

func (c *Cursor) ReadU64() (uint64, bool) {
	p, ok := c.take(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(p), true
}

func (c *Cursor) ReadI8() (int8, bool) {
	v, ok := c.ReadU8()
	return int8(v), ok
}
func (c *Cursor) ReadI16() (int16, bool) {
	v, ok := c.ReadU16()
	return int16(v), ok
}
func (c *Cursor) ReadI32() (int32, bool) {
	v, ok := c.ReadU32()
	return int32(v), ok
}
func (c *Cursor) ReadI64() (int64, bool) {
	v, ok := c.ReadU64()
	return int64(v), ok
}

func (c *Cursor) ReadF32() (float32, bool) {
	v, ok := c.ReadU32()
	return math.Float32frombits(v), ok
}
func (c *Cursor) ReadF64() (float64, bool) {
	v, ok := c.ReadU64()
	return math.Float64frombits(v), ok
}

// ReadPrimitive reads one fixed-width value per cat and returns it widened
// into a uint64 bit pattern, for the exact/versioned readers' category
// dispatch tables (the caller reinterprets via the same cat).
func (c *Cursor) ReadPrimitive(cat TypeCategory) (uint64, bool) {
	switch cat {
	case CategoryU8, CategoryI8:
		v, ok := c.ReadU8()
		return uint64(v), ok
	case CategoryU16, CategoryI16:
		v, ok := c.ReadU16()
		return uint64(v), ok
	case CategoryU32, CategoryI32, CategoryF32:
		v, ok := c.ReadU32()
		return uint64(v), ok
	case CategoryU64, CategoryI64, CategoryF64:
		return c.ReadU64()
	default:
		return 0, false
	}
}

// MappedSource is a read-only, memory-mapped byte source for decoding very
// large streams without reading them fully into the heap first (an
// alternative Cursor backing store; spec.md is silent on transport, this is
// an ambient convenience grounded on the pack's edsrzf/mmap-go usage).
type MappedSource struct {
	file *os.File
	mmap mmap.MMap
}

// OpenMappedSource memory-maps path read-only and returns a Cursor over it.
// Call Close when done; the Cursor remains valid only until then.
func OpenMappedSource(path string) (*Cursor, *MappedSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	src := &MappedSource{file: f, mmap: m}
	return NewCursor([]byte(m)), src, nil
}

// Close unmaps the source and closes its backing file.
func (s *MappedSource) Close() error {
	if err := s.mmap.Unmap(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
