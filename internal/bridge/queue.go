package bridge

import "sync"

// Queue is a bounded FIFO that never blocks the producer. When full, the
// oldest item is evicted to make room.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	dropped  uint64
}

// NewQueue creates a queue holding at most capacity items. A capacity below
// one is raised to one.
func NewQueue[T any](capacity int) *Queue[T] {
	capacity = max(capacity, 1)
	return &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends v. It returns true if an older item was evicted.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	var evicted bool
	if len(q.items) == q.capacity {
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.dropped++
		evicted = true
	}

	q.items = append(q.items, v)
	return evicted
}

// Drain removes and returns all queued items, oldest first. It returns nil
// when the queue is empty and never blocks on producers.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	out := q.items
	q.items = make([]T, 0, q.capacity)
	return out
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the maximum number of queued items
func (q *Queue[T]) Capacity() int {
	return q.capacity
}

// Dropped returns how many items were evicted since creation
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
