// SPDX-License-Identifier: MIT
/*
Package bitint provides the integer bit tricks used to size and index a
radix-2 transform: rounding block lengths up to a power of two, taking the
base-2 logarithm of a transform size, and reversing the low bits of an index
for the bit-reversal permutation.

All functions are allocation free and safe to call from the audio callback.

Usage:

	size := bitint.NextPowerOfTwo(480) // 512
	if bitint.IsPowerOfTwo(size) {
		stages := bitint.Log2(size)           // 9
		j := bitint.ReverseBits(3, stages)     // 384
	}

----------------------------------------------------------------------

Why NextPowerOfTwo subtracts one before taking the bit length:

	For an input that is already a power of two, say 8 (binary 1000),
	bits.Len(8) is 4 and 1<<4 would double it. Using size-1 = 7
	(binary 0111) gives bits.Len(7) = 3 and 1<<3 = 8, so exact powers
	are preserved and every other value rounds up.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Zero and negative sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	1000   1024
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
// Powers of two have exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the base-2 logarithm of a power of two, i.e. the number of
// butterfly stages a transform of that length needs. The result for values
// that are not powers of two is the index of the lowest set bit.
func Log2(n int) int {
	if n <= 0 {
		return 0
	}
	return bits.TrailingZeros(uint(n))
}

// ReverseBits reverses the lowest width bits of x and discards the rest.
//
//	ReverseBits(0b001, 3) == 0b100
//	ReverseBits(0b110, 3) == 0b011
func ReverseBits(x, width int) int {
	if width <= 0 {
		return 0
	}
	return int(bits.Reverse(uint(x)) >> (bits.UintSize - width))
}
