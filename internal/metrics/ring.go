package metrics

// ring keeps the most recent cap values.
type ring[T any] struct {
	buf  []T
	next int
	full bool
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.buf[r.next] = v
	r.next++

	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *ring[T]) len() int {
	if r.full {
		return len(r.buf)
	}

	return r.next
}

// last returns the newest value.
func (r *ring[T]) last() (v T, ok bool) {
	if r.len() == 0 {
		return v, false
	}

	i := r.next - 1
	if i < 0 {
		i = len(r.buf) - 1
	}

	return r.buf[i], true
}

// values copies the contents oldest first.
func (r *ring[T]) values() []T {
	out := make([]T, 0, r.len())

	if r.full {
		out = append(out, r.buf[r.next:]...)
	}

	return append(out, r.buf[:r.next]...)
}
