package pmemlog

import "fmt"

// offsetTracker is the only place that decides where the next append starts.
// It's not safe for concurrent use: reserve / commit / release happen
// inside the pool's append critical section.
type offsetTracker struct {
	tail     int64
	capacity int64
	// end of the reservation in flight, == tail when there is none
	reserved int64
}

func newOffsetTracker(tail int64, capacity int64) offsetTracker {
	return offsetTracker{tail: tail, capacity: capacity, reserved: tail}
}

// reserve returns the start of [tail, tail+n). Nothing is persisted.
func (t *offsetTracker) reserve(n int64) (int64, error) {
	if n < 0 {
		return 0, outOfRange(t.tail, n, t.capacity)
	}
	if t.reserved != t.tail {
		panic(fmt.Sprintf("reserve() with reservation in flight, tail: %d, reserved: %d", t.tail, t.reserved))
	}
	if n > t.capacity-t.tail {
		return 0, fmt.Errorf("%w: append of %d bytes, %d bytes free", ErrPoolFull, n, t.capacity-t.tail)
	}
	t.reserved = t.tail + n
	return t.tail, nil
}

// commit makes the reservation in flight part of the log
func (t *offsetTracker) commit() int64 {
	t.tail = t.reserved
	return t.tail
}

// release drops the reservation in flight. No-op after commit.
func (t *offsetTracker) release() {
	t.reserved = t.tail
}

func (t *offsetTracker) free() int64 {
	return t.capacity - t.tail
}
