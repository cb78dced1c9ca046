// Package pool holds free lists of reusable values.
package pool

import "sync"

// Free is a mutex guarded free list. Values put over capacity are left to
// the GC.
type Free[T any] struct {
	mu    sync.Mutex
	items []T
	newFn func() T
}

func New[T any](capacity int, newFn func() T) *Free[T] {
	return &Free[T]{
		items: make([]T, 0, capacity),
		newFn: newFn,
	}
}

// Get returns a released value or a new one.
func (p *Free[T]) Get() T {
	p.mu.Lock()
	l := len(p.items)
	if l == 0 {
		p.mu.Unlock()
		return p.newFn()
	}
	v := p.items[l-1]
	p.items = p.items[:l-1]
	p.mu.Unlock()
	return v
}

func (p *Free[T]) Put(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.items) < cap(p.items) {
		p.items = append(p.items, v)
	}
}

func (p *Free[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
