package execution

import (
	"mit.edu/dsg/joindb/storage"
)

// simpleNestedLoop is the baseline join: for each outer tuple, scan the whole inner child and emit every
// match as soon as it is found. The inner child is rewound after each pass, so it is scanned |outer| times
// and the predicate is evaluated exactly |outer| x |inner| times.
type simpleNestedLoop struct {
	j *joinCore

	current    storage.Tuple // the outer tuple the inner scan is being matched against
	hasCurrent bool
}

func newSimpleNestedLoop(j *joinCore) *simpleNestedLoop {
	return &simpleNestedLoop{j: j}
}

func (s *simpleNestedLoop) step() (storage.Tuple, bool, error) {
	for {
		if !s.hasCurrent {
			t, ok, err := pull(s.j.outer)
			if err != nil || !ok {
				return storage.Tuple{}, false, err
			}
			s.current = t
			s.hasCurrent = true
		}

		for {
			inner, ok, err := pull(s.j.inner)
			if err != nil {
				return storage.Tuple{}, false, err
			}
			if !ok {
				break
			}
			match, err := s.j.test(s.current, inner)
			if err != nil {
				return storage.Tuple{}, false, err
			}
			if match {
				return s.j.concat(s.current, inner), true, nil
			}
		}

		// Inner is exhausted for this outer tuple; start it over for the next one.
		if err := s.j.rescan(s.j.inner); err != nil {
			return storage.Tuple{}, false, err
		}
		s.hasCurrent = false
	}
}

func (s *simpleNestedLoop) reset() {
	s.current = storage.Tuple{}
	s.hasCurrent = false
}

func (s *simpleNestedLoop) release() {
	s.reset()
}
