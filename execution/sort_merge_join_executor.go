package execution

import (
	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/storage"
)

// mergeCursor walks one sorted child and remembers the key of its current tuple.
type mergeCursor struct {
	child   Executor
	keyOf   func(storage.Tuple) (common.Value, error)
	side    string
	current storage.Tuple
	key     common.Value
	valid   bool
	primed  bool
	hasPrev bool
	prevKey common.Value
}

// advance moves to the next tuple and checks that keys never decrease.
func (c *mergeCursor) advance() error {
	c.primed = true
	t, ok, err := pull(c.child)
	if err != nil {
		return err
	}
	if !ok {
		c.valid = false
		return nil
	}
	key, err := c.keyOf(t)
	if err != nil {
		return err
	}
	if c.hasPrev {
		cmp, err := c.prevKey.Compare(key)
		if err != nil {
			return err
		}
		if cmp > 0 {
			return common.NewGoDBError(common.QueryExecutionError,
				"sort-merge join: %s input is not sorted (%s after %s)", c.side, key, c.prevKey)
		}
	}
	c.prevKey, c.hasPrev = key, true
	c.current, c.key, c.valid = t, key, true
	return nil
}

func (c *mergeCursor) reset() {
	*c = mergeCursor{child: c.child, keyOf: c.keyOf, side: c.side}
}

// sortMergeJoin merges two children that are already sorted ascending on their join keys. When the keys
// under both cursors are equal, the whole run of that key is collected from each side and their cross
// product is emitted. Only the two current runs are buffered.
type sortMergeJoin struct {
	j            *joinCore
	outer, inner mergeCursor

	// Runtime state
	outerRun, innerRun     []storage.Tuple
	outerIndex, innerIndex int
}

func newSortMergeJoin(j *joinCore) *sortMergeJoin {
	return &sortMergeJoin{
		j:     j,
		outer: mergeCursor{child: j.outer, keyOf: j.pred.LeftKey, side: "outer"},
		inner: mergeCursor{child: j.inner, keyOf: j.pred.RightKey, side: "inner"},
	}
}

// collectRun buffers every tuple of c whose key equals key, leaving c on the first tuple past the run.
func collectRun(c *mergeCursor, key common.Value, run []storage.Tuple) ([]storage.Tuple, error) {
	run = run[:0]
	for c.valid {
		cmp, err := c.key.Compare(key)
		if err != nil {
			return nil, err
		}
		if cmp != 0 {
			break
		}
		run = append(run, c.current)
		if err := c.advance(); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// nextRuns positions both runs on the next key present on both sides. It returns false when either side
// runs out.
func (m *sortMergeJoin) nextRuns() (bool, error) {
	if !m.outer.primed {
		if err := m.outer.advance(); err != nil {
			return false, err
		}
		if err := m.inner.advance(); err != nil {
			return false, err
		}
	}

	for m.outer.valid && m.inner.valid {
		// NULL keys never join; they sort first, so skip past them.
		if m.outer.key.IsNull() {
			if err := m.outer.advance(); err != nil {
				return false, err
			}
			continue
		}
		if m.inner.key.IsNull() {
			if err := m.inner.advance(); err != nil {
				return false, err
			}
			continue
		}

		cmp, err := m.outer.key.Compare(m.inner.key)
		if err != nil {
			return false, err
		}
		switch {
		case cmp < 0:
			err = m.outer.advance()
		case cmp > 0:
			err = m.inner.advance()
		default:
			key := m.outer.key
			if m.outerRun, err = collectRun(&m.outer, key, m.outerRun); err != nil {
				return false, err
			}
			if m.innerRun, err = collectRun(&m.inner, key, m.innerRun); err != nil {
				return false, err
			}
			m.outerIndex, m.innerIndex = 0, 0
			m.j.noteBuffered(len(m.outerRun)*m.j.outer.Schema().BytesPerTuple() +
				len(m.innerRun)*m.j.inner.Schema().BytesPerTuple())
			return true, nil
		}
		if err != nil {
			return false, err
		}
	}
	return false, nil
}

func (m *sortMergeJoin) step() (storage.Tuple, bool, error) {
	for {
		if m.outerIndex < len(m.outerRun) {
			outer := m.outerRun[m.outerIndex]
			inner := m.innerRun[m.innerIndex]
			m.innerIndex++
			if m.innerIndex == len(m.innerRun) {
				m.innerIndex = 0
				m.outerIndex++
			}
			match, err := m.j.test(outer, inner)
			if err != nil {
				return storage.Tuple{}, false, err
			}
			if match {
				return m.j.concat(outer, inner), true, nil
			}
			continue
		}

		ok, err := m.nextRuns()
		if err != nil || !ok {
			return storage.Tuple{}, false, err
		}
	}
}

func (m *sortMergeJoin) reset() {
	m.outer.reset()
	m.inner.reset()
	m.outerRun = m.outerRun[:0]
	m.innerRun = m.innerRun[:0]
	m.outerIndex, m.innerIndex = 0, 0
}

func (m *sortMergeJoin) release() {
	m.reset()
	m.outerRun, m.innerRun = nil, nil
}
