package forecast

// Ring is a fixed-capacity FIFO of float64 values. Pushing onto a full ring
// evicts the oldest value.
type Ring struct {
	buf   []float64
	start int
	n     int
}

// NewRing returns an empty ring holding at most capacity values.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value when the ring is full.
func (r *Ring) Push(v float64) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored values.
func (r *Ring) Len() int { return r.n }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Full reports whether the ring holds Cap values.
func (r *Ring) Full() bool { return r.n == len(r.buf) }

// At returns the i-th value, oldest first.
func (r *Ring) At(i int) float64 { return r.buf[(r.start+i)%len(r.buf)] }

// Values returns a copy of the contents, oldest first.
func (r *Ring) Values() []float64 {
	out := make([]float64, r.n)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

// Last returns a copy of the newest n values, oldest first.
func (r *Ring) Last(n int) []float64 {
	if n > r.n {
		n = r.n
	}
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = r.At(r.n - n + i)
	}
	return out
}

// All reports whether pred holds for every stored value. An empty ring
// yields true.
func (r *Ring) All(pred func(float64) bool) bool {
	for i := 0; i < r.n; i++ {
		if !pred(r.At(i)) {
			return false
		}
	}
	return true
}

// restore refills the ring from vals, keeping the newest Cap values.
func (r *Ring) restore(vals []float64) {
	r.start, r.n = 0, 0
	for _, v := range vals {
		r.Push(v)
	}
}
