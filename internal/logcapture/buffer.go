package logcapture

// ring is a bounded FIFO buffer. Once full, each push overwrites the oldest
// entry. Storage grows lazily up to capacity.
type ring[T any] struct {
	items    []T
	head     int // index of the oldest item once the buffer has wrapped
	capacity int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{capacity: capacity}
}

// push appends v and reports whether an older item was evicted to make room.
func (r *ring[T]) push(v T) bool {
	if len(r.items) < r.capacity {
		r.items = append(r.items, v)
		return false
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % r.capacity
	return true
}

// slice returns the items oldest first in a new slice.
func (r *ring[T]) slice() []T {
	out := make([]T, 0, len(r.items))
	out = append(out, r.items[r.head:]...)
	out = append(out, r.items[:r.head]...)
	return out
}

// resize changes capacity, keeping the most recent items.
func (r *ring[T]) resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	ordered := r.slice()
	if len(ordered) > capacity {
		ordered = ordered[len(ordered)-capacity:]
	}
	r.items = ordered
	r.head = 0
	r.capacity = capacity
}

func (r *ring[T]) reset() {
	r.items = nil
	r.head = 0
}

func (r *ring[T]) len() int { return len(r.items) }
