package metrics

// ring is a fixed-capacity FIFO buffer. Pushing into a full ring silently
// drops the oldest element. Not safe for concurrent use; the Recorder guards it.
type ring[T any] struct {
	buf   []T
	start int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// items returns the contents oldest first.
func (r *ring[T]) items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *ring[T]) len() int { return r.size }

// retain keeps the elements for which keep returns true, preserving order,
// and reports how many were dropped.
func (r *ring[T]) retain(keep func(T) bool) int {
	kept := r.items()[:0:0]
	for _, v := range r.items() {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	dropped := r.size - len(kept)
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start, r.size = 0, 0
	for _, v := range kept {
		r.push(v)
	}
	return dropped
}

func (r *ring[T]) reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start, r.size = 0, 0
}
