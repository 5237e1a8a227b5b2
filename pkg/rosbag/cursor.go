package rosbag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned when serialized data ends before a field.
var ErrShortBuffer = errors.New("rosbag: buffer too short")

// cursor is a zero-copy little-endian reader over a byte slice. The first
// failure is sticky: later reads return zero values and Err reports it.
type cursor struct {
	buf []byte
	pos int
	err error
}

func newCursor(b []byte) *cursor {
	return &cursor{buf: b}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.buf) {
		return 0
	}
	return len(c.buf) - c.pos
}

// next returns the next n bytes as a slice of the underlying buffer.
func (c *cursor) next(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > c.remaining() {
		c.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, c.pos, c.remaining())
		return nil
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v
}

func (c *cursor) u8() uint8 {
	b := c.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) boolean() bool { return c.u8() != 0 }

func (c *cursor) u32() uint32 {
	b := c.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) u64() uint64 {
	b := c.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (c *cursor) f32() float32 { return math.Float32frombits(c.u32()) }

func (c *cursor) f64() float64 { return math.Float64frombits(c.u64()) }

// blob reads a uint32 length prefix followed by that many bytes.
func (c *cursor) blob() []byte {
	n := c.u32()
	return c.next(int(n))
}

func (c *cursor) str() string { return string(c.blob()) }

func (c *cursor) time() Time {
	return Time{Sec: c.u32(), NSec: c.u32()}
}

// f64s reads n float64 values; n < 0 reads a length prefix first.
func (c *cursor) f64s(n int) []float64 {
	if n < 0 {
		n = int(c.u32())
		if c.err == nil && n > c.remaining()/8 {
			c.err = fmt.Errorf("%w: float64 array of %d", ErrShortBuffer, n)
		}
	}
	if c.err != nil {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = c.f64()
	}
	return out
}

func (c *cursor) f32s(n int) []float32 {
	if n < 0 {
		n = int(c.u32())
		if c.err == nil && n > c.remaining()/4 {
			c.err = fmt.Errorf("%w: float32 array of %d", ErrShortBuffer, n)
		}
	}
	if c.err != nil {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = c.f32()
	}
	return out
}

// encoder is the write-side counterpart of cursor.
type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8) { e.buf = append(e.buf, v) }

func (e *encoder) boolean(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

func (e *encoder) f32(v float32) { e.u32(math.Float32bits(v)) }

func (e *encoder) f64(v float64) { e.u64(math.Float64bits(v)) }

func (e *encoder) blob(b []byte) {
	e.u32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) time(t Time) {
	e.u32(t.Sec)
	e.u32(t.NSec)
}

// f64s writes values; a variable-length array also gets a length prefix.
func (e *encoder) f64s(values []float64, variable bool) {
	if variable {
		e.u32(uint32(len(values)))
	}
	for _, v := range values {
		e.f64(v)
	}
}

func (e *encoder) f32s(values []float32, variable bool) {
	if variable {
		e.u32(uint32(len(values)))
	}
	for _, v := range values {
		e.f32(v)
	}
}
