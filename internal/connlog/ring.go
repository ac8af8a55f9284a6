package connlog

// ring is a fixed-capacity circular buffer. push is O(1); once full, each push
// overwrites the oldest element.
type ring[T any] struct {
	buf  []T
	head int // index of the next write
	n    int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *ring[T]) len() int { return r.n }

func (r *ring[T]) cap() int { return len(r.buf) }

// at returns the i-th newest element (0 is the newest).
func (r *ring[T]) at(i int) T {
	idx := (r.head - 1 - i + 2*len(r.buf)) % len(r.buf)
	return r.buf[idx]
}

// newestFirst calls fn for each element from newest to oldest until fn returns false.
func (r *ring[T]) newestFirst(fn func(T) bool) {
	for i := range r.n {
		if !fn(r.at(i)) {
			return
		}
	}
}

func (r *ring[T]) reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head, r.n = 0, 0
}
