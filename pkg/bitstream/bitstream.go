// Package bitstream provides bit-granular reading and writing over byte
// buffers. It is the only serialization layer used for cooked resources.
//
// Bits are stored least significant first: bit position p lives in byte
// p/8 at bit p%8, and a value of n bits occupies positions pos..pos+n-1
// from its lowest bit to its highest.
package bitstream

import (
	"errors"
	"math/bits"
)

// Bitstream errors.
var (
	ErrOutOfRange = errors.New("bitstream: out of range")
	ErrCapacity   = errors.New("bitstream: buffer capacity exceeded")
	ErrValueWidth = errors.New("bitstream: value does not fit in bit width")
	ErrString     = errors.New("bitstream: string too long")
)

// MaxStringLen is the longest string that fits the 16-bit length prefix.
const MaxStringLen = 0xFFFF

// BitsFor returns the minimal width able to hold every value in [0, n).
func BitsFor(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// ByteLen returns the number of whole bytes touched by a bit count.
func ByteLen(bitCount int) int {
	return (bitCount + 7) / 8
}

func checkWidth(n int) {
	if n < 0 || n > 32 {
		panic("bitstream: bit width must be within [0, 32]")
	}
}

func putBits(buf []byte, pos int, v uint32, n int) {
	for n > 0 {
		idx := pos >> 3
		bit := uint(pos & 7)
		chunk := 8 - int(bit)
		if chunk > n {
			chunk = n
		}
		mask := byte((1<<uint(chunk))-1) << bit
		buf[idx] = buf[idx]&^mask | byte(v<<bit)&mask
		v >>= uint(chunk)
		pos += chunk
		n -= chunk
	}
}

func getBits(buf []byte, pos int, n int) uint32 {
	var v uint32
	shift := uint(0)
	for n > 0 {
		idx := pos >> 3
		bit := uint(pos & 7)
		chunk := 8 - int(bit)
		if chunk > n {
			chunk = n
		}
		b := (buf[idx] >> bit) & byte((1<<uint(chunk))-1)
		v |= uint32(b) << shift
		shift += uint(chunk)
		pos += chunk
		n -= chunk
	}
	return v
}
