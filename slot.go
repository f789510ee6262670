package camquad

import "sync/atomic"

// Slot is a single-value cell holding the most recently published value.
// One goroutine may publish while others read; readers always observe a
// complete value together with the sequence number it was published under.
//
// The zero Slot is empty and ready to use.
type Slot[T any] struct {
	cur atomic.Pointer[slotEntry[T]]
}

type slotEntry[T any] struct {
	val T
	seq uint64
}

// Swap publishes v and returns the value it replaced, if any.
// Sequence numbers start at 1 and increase by one per publish.
func (s *Slot[T]) Swap(v T) (old T, ok bool) {
	for {
		prev := s.cur.Load()
		next := &slotEntry[T]{val: v, seq: 1}
		if prev != nil {
			next.seq = prev.seq + 1
		}
		if s.cur.CompareAndSwap(prev, next) {
			if prev == nil {
				return old, false
			}
			return prev.val, true
		}
	}
}

// Load returns the current value and its sequence number.
// ok is false while nothing has been published.
func (s *Slot[T]) Load() (v T, seq uint64, ok bool) {
	e := s.cur.Load()
	if e == nil {
		return v, 0, false
	}
	return e.val, e.seq, true
}

// Seq returns the sequence number of the current value, or 0 when empty.
func (s *Slot[T]) Seq() uint64 {
	if e := s.cur.Load(); e != nil {
		return e.seq
	}
	return 0
}

// Take empties the slot and returns the value it held.
func (s *Slot[T]) Take() (v T, ok bool) {
	e := s.cur.Swap(nil)
	if e == nil {
		return v, false
	}
	return e.val, true
}
