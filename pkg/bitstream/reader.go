package bitstream

import (
	"fmt"
	"math"
)

// Reader consumes bit fields from a byte buffer. Like Writer, the first
// failure is sticky and reported by Err.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader returns a reader positioned at bit 0 of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// Pos returns the current bit position.
func (r *Reader) Pos() int {
	return r.pos
}

// Len returns the number of bytes touched so far.
func (r *Reader) Len() int {
	return ByteLen(r.pos)
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int {
	return len(r.buf)*8 - r.pos
}

// Buffer returns the backing buffer.
func (r *Reader) Buffer() []byte {
	return r.buf
}

func (r *Reader) fail(err error) error {
	if r.err == nil {
		r.err = err
	}
	return r.err
}

// ReadBits reads n bits (0 <= n <= 32).
func (r *Reader) ReadBits(n int) (uint32, error) {
	checkWidth(n)
	if r.err != nil {
		return 0, r.err
	}
	if r.pos+n > len(r.buf)*8 {
		return 0, r.fail(fmt.Errorf("%w: read of %d bits at bit %d, length %d", ErrOutOfRange, n, r.pos, len(r.buf)*8))
	}
	v := getBits(r.buf, r.pos, n)
	r.pos += n
	return v, nil
}

// Seek moves to an absolute bit position.
func (r *Reader) Seek(pos int) error {
	if r.err != nil {
		return r.err
	}
	if pos < 0 || pos > len(r.buf)*8 {
		return r.fail(fmt.Errorf("%w: seek to bit %d, length %d", ErrOutOfRange, pos, len(r.buf)*8))
	}
	r.pos = pos
	return nil
}

// Skip advances n bits without decoding them.
func (r *Reader) Skip(n int) error {
	return r.Seek(r.pos + n)
}

// Align skips to the next byte boundary.
func (r *Reader) Align() error {
	return r.Skip((8 - r.pos%8) % 8)
}

// Uint reads n bits, returning 0 once the reader has failed.
func (r *Reader) Uint(n int) uint32 {
	v, _ := r.ReadBits(n)
	return v
}

// Int reads a signed two's complement value of n bits.
func (r *Reader) Int(n int) int32 {
	v := r.Uint(n)
	if n == 0 || n == 32 {
		return int32(v)
	}
	shift := uint(32 - n)
	return int32(v<<shift) >> shift
}

// Bool reads a single bit.
func (r *Reader) Bool() bool {
	return r.Uint(1) == 1
}

// Float32 reads a 32-bit IEEE 754 pattern.
func (r *Reader) Float32() float32 {
	return math.Float32frombits(r.Uint(32))
}

// String reads a 16-bit length-prefixed byte string.
func (r *Reader) String() string {
	n := int(r.Uint(16))
	if r.err != nil {
		return ""
	}
	if n*8 > r.Remaining() {
		r.fail(fmt.Errorf("%w: string of %d bytes at bit %d", ErrOutOfRange, n, r.pos))
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint(8))
	}
	return string(b)
}
