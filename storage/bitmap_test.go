package storage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func verifyBitmap(t *testing.T, bm Bitmap, shadow []bool) {
	for i := 0; i < len(shadow); i++ {
		actual := bm.LoadBit(i)
		expected := shadow[i]
		assert.Equal(t, expected, actual, "Mismatch at bit %d", i)
	}
}

// runRandomizedTest executes a randomized test on the Bitmap implementation against a simple reference of []bool.
// It performs random SetBit and LoadBit operations and checks every returned value against the shadow slice.
func runRandomizedTest(t *testing.T, numBits int, seed int64) {
	r := rand.New(rand.NewSource(seed))
	bm := NewBitmap(numBits)
	shadow := make([]bool, numBits)

	iterations := 100000
	for i := 0; i < iterations; i++ {
		switch r.Intn(3) {
		case 0: // Set random bit
			idx := r.Intn(numBits)
			on := r.Intn(2) == 0
			prev := bm.SetBit(idx, on)
			assert.Equal(t, shadow[idx], prev, "SetBit return value mismatch at iter %d", i)
			shadow[idx] = on

		case 1: // Check LoadBit
			idx := r.Intn(numBits)
			assert.Equal(t, shadow[idx], bm.LoadBit(idx), "LoadBit mismatch at iter %d", i)

		case 2: // Mass toggle a range
			start := r.Intn(numBits)
			length := r.Intn(20) + 1
			for j := 0; j < length && start+j < numBits; j++ {
				val := r.Intn(2) == 0
				bm.SetBit(start+j, val)
				shadow[start+j] = val
			}
		}
	}
	verifyBitmap(t, bm, shadow)
}

func TestBitmapSimpleSetLoad(t *testing.T) {
	numBits := 100
	bm := NewBitmap(numBits)
	shadow := make([]bool, numBits)

	verifyBitmap(t, bm, shadow)
	// Set bits crossing word boundaries
	indicesToSet := []int{0, 1, 63, 64, 99}
	for _, idx := range indicesToSet {
		prev := bm.SetBit(idx, true)
		assert.Equal(t, shadow[idx], prev, "Unexpected previous value at %d", idx)
		shadow[idx] = true
	}
	verifyBitmap(t, bm, shadow)

	indicesToUnset := []int{0, 2, 63, 60, 98}
	for _, idx := range indicesToUnset {
		prev := bm.SetBit(idx, false)
		assert.Equal(t, shadow[idx], prev, "Unexpected previous value at %d", idx)
		shadow[idx] = false
	}
	verifyBitmap(t, bm, shadow)

	assert.Panics(t, func() { bm.LoadBit(numBits) })
}

func TestBitmapAppend(t *testing.T) {
	for _, sizes := range [][2]int{{3, 5}, {64, 10}, {70, 70}, {1, 128}} {
		left, right := NewBitmap(sizes[0]), NewBitmap(sizes[1])
		var shadow []bool
		for i := 0; i < sizes[0]; i++ {
			on := i%3 == 0
			left.SetBit(i, on)
			shadow = append(shadow, on)
		}
		for i := 0; i < sizes[1]; i++ {
			on := i%2 == 1
			right.SetBit(i, on)
			shadow = append(shadow, on)
		}

		joined := left.Append(&right)
		assert.Equal(t, sizes[0]+sizes[1], joined.Len())
		verifyBitmap(t, joined, shadow)

		// inputs untouched by writes to the result
		joined.SetBit(0, !shadow[0])
		assert.Equal(t, shadow[0], left.LoadBit(0))
	}
}

func TestBitmapClone(t *testing.T) {
	bm := NewBitmap(70)
	bm.SetBit(3, true)
	bm.SetBit(66, true)

	cp := bm.Clone()
	assert.Equal(t, bm.Len(), cp.Len())
	cp.SetBit(3, false)
	cp.SetBit(5, true)
	assert.True(t, bm.LoadBit(3))
	assert.False(t, bm.LoadBit(5))
	assert.True(t, cp.LoadBit(66))
}

func TestBitmapRandomizedSmall(t *testing.T) {
	runRandomizedTest(t, 43, 65830)
}

func TestBitmapRandomizedLarge(t *testing.T) {
	runRandomizedTest(t, 500, 65831)
}
