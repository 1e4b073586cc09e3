package store

import "time"

// sequencer hands out cart item ids. Ids follow the wall clock in
// milliseconds but never repeat or go backwards: two adds in the same
// millisecond, or a clock step back, still get increasing ids.
type sequencer struct {
	last    int64
	nowFunc func() time.Time
}

func (s *sequencer) next() int64 {
	id := s.nowFunc().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// observe makes sure future ids are above id.
func (s *sequencer) observe(id int64) {
	if id > s.last {
		s.last = id
	}
}
