package lru

import (
	"container/list"
	"sync"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRU is a fixed size cache safe for concurrent use.
type LRU[K comparable, V any] struct {
	maxSize int
	items   map[K]*list.Element
	list    *list.List
	mu      sync.Mutex
}

func New[K comparable, V any](maxSize int) *LRU[K, V] {
	if maxSize < 1 {
		panic("assertion error: maxSize < 1")
	}
	return &LRU[K, V]{
		maxSize: maxSize,
		items:   make(map[K]*list.Element, maxSize),
		list:    list.New(),
	}
}

// Get fetches an item and moves it to the front of the eviction order.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	element, ok := l.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	l.list.MoveToFront(element)
	return element.Value.(*entry[K, V]).value, true
}

// Add stores an item, evicting the least recently used one when full.
func (l *LRU[K, V]) Add(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if element, ok := l.items[key]; ok {
		element.Value.(*entry[K, V]).value = value
		l.list.MoveToFront(element)
		return
	}

	if len(l.items) >= l.maxSize {
		element := l.list.Back()
		l.list.Remove(element)
		delete(l.items, element.Value.(*entry[K, V]).key)
	}

	l.items[key] = l.list.PushFront(&entry[K, V]{key: key, value: value})
}

// Remove drops every item matching the predicate.
func (l *LRU[K, V]) Remove(match func(K) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, element := range l.items {
		if match(key) {
			l.list.Remove(element)
			delete(l.items, key)
		}
	}
}

func (l *LRU[K, V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
