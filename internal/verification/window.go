package verification

// ringBuffer - кольцевой буфер фиксированной емкости, при переполнении
// вытесняется самый старый элемент. Не потокобезопасен, владелец один.
type ringBuffer[T any] struct {
	buf  []T
	head int
	size int
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	if capacity <= 0 {
		panic("ring buffer capacity must be positive")
	}
	return &ringBuffer[T]{buf: make([]T, capacity)}
}

// push возвращает true если пришлось вытеснить старый элемент
func (r *ringBuffer[T]) push(v T) bool {
	tail := (r.head + r.size) % len(r.buf)
	r.buf[tail] = v
	if r.size == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
		return true
	}
	r.size++
	return false
}

// values - копия содержимого, старые первыми
func (r *ringBuffer[T]) values() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

func (r *ringBuffer[T]) len() int { return r.size }

func (r *ringBuffer[T]) capacity() int { return len(r.buf) }

func (r *ringBuffer[T]) full() bool { return r.size == len(r.buf) }

func (r *ringBuffer[T]) clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.size = 0
}
