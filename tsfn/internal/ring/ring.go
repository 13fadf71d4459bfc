// Package ring provides the FIFO storage behind a call queue.
//
// Buffer is not safe for concurrent use; the owning queue serializes access
// with its own mutex.
package ring

const minCapacity = 16

// Buffer is a growable power-of-two ring of values.
type Buffer[T any] struct {
	buf  []T
	mask int
	head int
	size int
}

// New creates a buffer sized for at least capacity elements.
// A non-positive capacity uses a small default and grows on demand.
func New[T any](capacity int) *Buffer[T] {
	n := minCapacity
	for n < capacity {
		n <<= 1
	}
	return &Buffer[T]{
		buf:  make([]T, n),
		mask: n - 1,
	}
}

// Len returns the number of stored values.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Push appends v at the tail, growing the ring when it is full.
func (b *Buffer[T]) Push(v T) {
	if b.size == len(b.buf) {
		b.grow()
	}
	b.buf[(b.head+b.size)&b.mask] = v
	b.size++
}

// Pop removes and returns the value at the head.
func (b *Buffer[T]) Pop() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	v := b.buf[b.head]
	b.buf[b.head] = zero // drop the reference for the GC
	b.head = (b.head + 1) & b.mask
	b.size--
	return v, true
}

func (b *Buffer[T]) grow() {
	next := make([]T, len(b.buf)<<1)
	for i := 0; i < b.size; i++ {
		next[i] = b.buf[(b.head+i)&b.mask]
	}
	b.buf = next
	b.mask = len(next) - 1
	b.head = 0
}
