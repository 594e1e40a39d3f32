package execution

import (
	"mit.edu/dsg/joindb/storage"
)

// blockNestedLoop implements the block nested loop join algorithm.
// It loads a block of tuples from the outer child into memory and then scans the inner child once for the
// whole block, testing every inner tuple against every buffered outer tuple. This reduces the number of
// inner scans from |outer| to |outer| / blockSize while evaluating the predicate as often as the simple
// nested loop does.
type blockNestedLoop struct {
	j        *joinCore
	capacity int // outer tuples per block

	// Runtime State
	block      []storage.Tuple
	blockIndex int // next buffered outer tuple to test against current
	current    storage.Tuple
	hasCurrent bool
	outerDone  bool
}

// newBlockNestedLoop creates a block nested loop whose block holds at most blockBytes of outer tuples
// (and always at least one tuple).
func newBlockNestedLoop(j *joinCore, blockBytes int) *blockNestedLoop {
	capacity := max(1, blockBytes/j.outer.Schema().BytesPerTuple())
	return &blockNestedLoop{
		j:        j,
		capacity: capacity,
		block:    make([]storage.Tuple, 0, capacity),
	}
}

// loadBlock fills the block with the next outer tuples. It returns false once the outer child is exhausted
// and nothing was buffered.
func (b *blockNestedLoop) loadBlock() (bool, error) {
	b.block = b.block[:0]
	for !b.outerDone && len(b.block) < b.capacity {
		t, ok, err := pull(b.j.outer)
		if err != nil {
			return false, err
		}
		if !ok {
			b.outerDone = true
			break
		}
		b.block = append(b.block, t)
	}
	b.j.noteBuffered(len(b.block) * b.j.outer.Schema().BytesPerTuple())
	return len(b.block) > 0, nil
}

func (b *blockNestedLoop) step() (storage.Tuple, bool, error) {
	for {
		if len(b.block) == 0 {
			ok, err := b.loadBlock()
			if err != nil || !ok {
				return storage.Tuple{}, false, err
			}
			b.hasCurrent = false
		}

		if !b.hasCurrent {
			t, ok, err := pull(b.j.inner)
			if err != nil {
				return storage.Tuple{}, false, err
			}
			if !ok {
				// Done with this block. Rescan the inner child for the next one.
				b.block = b.block[:0]
				if err := b.j.rescan(b.j.inner); err != nil {
					return storage.Tuple{}, false, err
				}
				continue
			}
			b.current = t
			b.hasCurrent = true
			b.blockIndex = 0
		}

		for b.blockIndex < len(b.block) {
			outer := b.block[b.blockIndex]
			b.blockIndex++
			match, err := b.j.test(outer, b.current)
			if err != nil {
				return storage.Tuple{}, false, err
			}
			if match {
				return b.j.concat(outer, b.current), true, nil
			}
		}
		// Keep the block and move on to the next inner tuple
		b.hasCurrent = false
	}
}

func (b *blockNestedLoop) reset() {
	b.block = b.block[:0]
	b.blockIndex = 0
	b.current = storage.Tuple{}
	b.hasCurrent = false
	b.outerDone = false
}

func (b *blockNestedLoop) release() {
	b.reset()
	b.block = nil
}
