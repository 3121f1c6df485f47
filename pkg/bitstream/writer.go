package bitstream

import (
	"fmt"
	"math"
)

// Writer appends bit fields to a fixed-capacity buffer.
//
// The first failure is sticky: every later write returns the same error, so
// encoders may issue a run of writes and check Err once.
type Writer struct {
	buf []byte
	pos int
	err error
}

// NewWriter returns a writer over buf. The capacity is len(buf)*8 bits and
// never grows.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error {
	return w.err
}

// Pos returns the current bit position.
func (w *Writer) Pos() int {
	return w.pos
}

// Cap returns the capacity in bits.
func (w *Writer) Cap() int {
	return len(w.buf) * 8
}

// Len returns the number of bytes touched so far.
func (w *Writer) Len() int {
	return ByteLen(w.pos)
}

// Bytes returns the written prefix of the buffer.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.Len()]
}

// WriteBits appends the low n bits of v (0 <= n <= 32).
func (w *Writer) WriteBits(v uint32, n int) error {
	checkWidth(n)
	if w.err != nil {
		return w.err
	}
	if n < 32 && v>>uint(n) != 0 {
		w.err = fmt.Errorf("%w: %d in %d bits", ErrValueWidth, v, n)
		return w.err
	}
	if w.pos+n > w.Cap() {
		w.err = fmt.Errorf("%w: %d bits needed at bit %d, capacity %d", ErrCapacity, n, w.pos, w.Cap())
		return w.err
	}
	putBits(w.buf, w.pos, v, n)
	w.pos += n
	return nil
}

// Patch overwrites n bits at a previously written bit offset without
// moving the write position.
func (w *Writer) Patch(offset int, v uint32, n int) error {
	checkWidth(n)
	if w.err != nil {
		return w.err
	}
	if offset < 0 || offset+n > w.pos {
		return fmt.Errorf("%w: patch of %d bits at %d beyond written %d", ErrOutOfRange, n, offset, w.pos)
	}
	if n < 32 && v>>uint(n) != 0 {
		return fmt.Errorf("%w: %d in %d bits", ErrValueWidth, v, n)
	}
	putBits(w.buf, offset, v, n)
	return nil
}

// Align pads with zero bits up to the next byte boundary.
func (w *Writer) Align() error {
	return w.WriteBits(0, (8-w.pos%8)%8)
}

// WriteBool writes a single bit.
func (w *Writer) WriteBool(b bool) error {
	if b {
		return w.WriteBits(1, 1)
	}
	return w.WriteBits(0, 1)
}

// WriteFloat32 writes the 32-bit IEEE 754 pattern of f.
func (w *Writer) WriteFloat32(f float32) error {
	return w.WriteBits(math.Float32bits(f), 32)
}

// WriteInt writes a signed value in n bits using two's complement.
func (w *Writer) WriteInt(v int32, n int) error {
	checkWidth(n)
	if n == 0 {
		if v != 0 && w.err == nil {
			w.err = fmt.Errorf("%w: %d in 0 bits", ErrValueWidth, v)
		}
		return w.err
	}
	if n < 32 {
		lo, hi := -int32(1)<<uint(n-1), int32(1)<<uint(n-1)-1
		if v < lo || v > hi {
			if w.err == nil {
				w.err = fmt.Errorf("%w: %d in %d signed bits", ErrValueWidth, v, n)
			}
			return w.err
		}
		return w.WriteBits(uint32(v)&(1<<uint(n)-1), n)
	}
	return w.WriteBits(uint32(v), 32)
}

// WriteString writes a 16-bit length followed by the raw bytes.
func (w *Writer) WriteString(s string) error {
	if len(s) > MaxStringLen {
		if w.err == nil {
			w.err = fmt.Errorf("%w: %d bytes", ErrString, len(s))
		}
		return w.err
	}
	if err := w.WriteBits(uint32(len(s)), 16); err != nil {
		return err
	}
	for i := 0; i < len(s); i++ {
		if err := w.WriteBits(uint32(s[i]), 8); err != nil {
			return err
		}
	}
	return nil
}
