package execution

import (
	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/storage"
)

// hashJoin implements the hash join algorithm for equality predicates.
// It builds a hash table on the smaller child and probes it with each tuple of the other one.
//
// The sizes of the children are not known up front, so the build phase pulls one tuple from each child in
// turn until one of them runs out. That child is the smaller one and becomes the build side; the tuples
// already pulled from the other child are probed first, before its stream continues. Memory use is thus
// bounded by the smaller child.
type hashJoin struct {
	j    *joinCore
	hash HashFunc

	// Runtime State
	built      bool
	done       bool
	buildOuter bool // the table holds outer tuples and the inner child probes
	table      *JoinHashTable
	probeChild Executor
	probeKey   func(storage.Tuple) (common.Value, error)
	pending    []storage.Tuple // probe-side tuples pulled while sizing the children
	probe      storage.Tuple
	candidates []storage.Tuple // the chain matching the current probe tuple's key
	candIndex  int             // the index of the next candidate to test
}

func newHashJoin(j *joinCore, hash HashFunc) *hashJoin {
	return &hashJoin{j: j, hash: hash}
}

// buildPhase sizes both children and builds the hash table on the smaller one.
func (h *hashJoin) buildPhase() error {
	var outerSeen, innerSeen []storage.Tuple
	outerDone := false
	for {
		t, ok, err := pull(h.j.outer)
		if err != nil {
			return err
		}
		if !ok {
			outerDone = true
			break
		}
		outerSeen = append(outerSeen, t)

		t, ok, err = pull(h.j.inner)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		innerSeen = append(innerSeen, t)
	}

	var buildSet []storage.Tuple
	var buildKey func(storage.Tuple) (common.Value, error)
	var buildDesc *storage.TupleDesc
	if outerDone {
		h.buildOuter = true
		buildSet, buildKey, buildDesc = outerSeen, h.j.pred.LeftKey, h.j.outer.Schema()
		h.pending, h.probeChild, h.probeKey = innerSeen, h.j.inner, h.j.pred.RightKey
	} else {
		h.buildOuter = false
		buildSet, buildKey, buildDesc = innerSeen, h.j.pred.RightKey, h.j.inner.Schema()
		h.pending, h.probeChild, h.probeKey = outerSeen, h.j.outer, h.j.pred.LeftKey
	}
	h.j.noteBuffered(len(buildSet)*buildDesc.BytesPerTuple() +
		len(h.pending)*h.probeChild.Schema().BytesPerTuple())

	// Validate guarantees both key fields share a type.
	h.table = NewJoinHashTable(h.j.outer.Schema().FieldType(h.j.pred.LeftField), h.hash)
	for _, t := range buildSet {
		key, err := buildKey(t)
		if err != nil {
			return err
		}
		// NULL keys never match anything
		if key.IsNull() {
			continue
		}
		h.table.Insert(key, t)
	}
	h.built = true
	h.done = h.table.Len() == 0
	return nil
}

func (h *hashJoin) nextProbe() (storage.Tuple, bool, error) {
	if len(h.pending) > 0 {
		t := h.pending[0]
		h.pending = h.pending[1:]
		return t, true, nil
	}
	h.pending = nil
	return pull(h.probeChild)
}

func (h *hashJoin) step() (storage.Tuple, bool, error) {
	if !h.built {
		if err := h.buildPhase(); err != nil {
			return storage.Tuple{}, false, err
		}
	}

	for {
		for h.candIndex < len(h.candidates) {
			candidate := h.candidates[h.candIndex]
			h.candIndex++
			outer, inner := candidate, h.probe
			if !h.buildOuter {
				outer, inner = h.probe, candidate
			}
			// Chains may hold colliding keys, so every candidate is checked with the predicate.
			match, err := h.j.test(outer, inner)
			if err != nil {
				return storage.Tuple{}, false, err
			}
			if match {
				return h.j.concat(outer, inner), true, nil
			}
		}

		if h.done {
			return storage.Tuple{}, false, nil
		}
		t, ok, err := h.nextProbe()
		if err != nil {
			return storage.Tuple{}, false, err
		}
		if !ok {
			h.done = true
			h.candidates = nil
			return storage.Tuple{}, false, nil
		}
		key, err := h.probeKey(t)
		if err != nil {
			return storage.Tuple{}, false, err
		}
		if key.IsNull() {
			continue
		}
		h.probe = t
		h.candidates = h.table.Probe(key)
		h.candIndex = 0
	}
}

func (h *hashJoin) reset() {
	*h = hashJoin{j: h.j, hash: h.hash}
}

func (h *hashJoin) release() {
	h.reset()
}
