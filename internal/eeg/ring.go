package eeg

// Ring is a bounded FIFO of raw sample values. Appending beyond capacity
// evicts the oldest entry, so the buffer always holds the most recent
// window of the stream in arrival order.
//
// Ring is not safe for concurrent use; callers (the decoder and the
// consumer loop) serialise access with their own lock.
type Ring struct {
	buf   []int64
	start int
	count int
}

// NewRing creates a ring holding at most capacity values. Capacity must be
// positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("eeg: ring capacity must be positive")
	}
	return &Ring{buf: make([]int64, capacity)}
}

// Append adds v, evicting the oldest value when the ring is full.
func (r *Ring) Append(v int64) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = v
		r.count++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of buffered values.
func (r *Ring) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Clear drops all buffered values. The backing storage is retained.
func (r *Ring) Clear() {
	r.start = 0
	r.count = 0
}

// Values returns the buffered values oldest-first as a fresh slice.
func (r *Ring) Values() []int64 {
	out := make([]int64, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Last returns up to n of the most recent values oldest-first. When fewer
// than n values are buffered, all of them are returned.
func (r *Ring) Last(n int) []int64 {
	if n > r.count {
		n = r.count
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+r.count-n+i)%len(r.buf)]
	}
	return out
}
