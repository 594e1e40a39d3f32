package storage

import (
	"mit.edu/dsg/joindb/common"
)

// Bitmap is a fixed-size set of bits packed into 64-bit words. Tuples use it to track which of their slots
// have been written.
//
// Copying a Bitmap copies a reference to the same words, like a slice.
type Bitmap struct {
	words   []uint64
	numBits int
}

// NewBitmap allocates a bitmap of numBits bits, all cleared.
func NewBitmap(numBits int) Bitmap {
	return Bitmap{
		words:   make([]uint64, (numBits+63)/64),
		numBits: numBits,
	}
}

// Len returns the number of bits in the bitmap.
func (b *Bitmap) Len() int {
	return b.numBits
}

// SetBit sets the bit at index i to the given value.
// Returns the previous value of the bit.
func (b *Bitmap) SetBit(i int, on bool) (originalValue bool) {
	common.Assert(i >= 0 && i < b.numBits, "indexing out of bounds")
	wordIdx := i / 64
	bitIdx := uint(i % 64)
	mask := uint64(1) << bitIdx

	ptr := &b.words[wordIdx]
	originalValue = (*ptr & mask) != 0
	if on {
		*ptr |= mask
	} else {
		*ptr &^= mask
	}
	return originalValue
}

// LoadBit returns the value of the bit at index i.
func (b *Bitmap) LoadBit(i int) bool {
	common.Assert(i >= 0 && i < b.numBits, "indexing out of bounds")
	wordIdx := i / 64
	bitIdx := uint(i % 64)
	return (b.words[wordIdx] & (1 << bitIdx)) != 0
}

// Clone returns a bitmap with the same bits and its own words.
func (b *Bitmap) Clone() Bitmap {
	return Bitmap{words: append([]uint64(nil), b.words...), numBits: b.numBits}
}

// Append returns a new bitmap holding the bits of b followed by the bits of other.
func (b *Bitmap) Append(other *Bitmap) Bitmap {
	out := NewBitmap(b.numBits + other.numBits)
	copy(out.words, b.words)

	// Fast path: other starts on a word boundary
	if b.numBits%64 == 0 {
		copy(out.words[b.numBits/64:], other.words)
		return out
	}
	for i := 0; i < other.numBits; i++ {
		if other.LoadBit(i) {
			out.SetBit(b.numBits+i, true)
		}
	}
	return out
}
