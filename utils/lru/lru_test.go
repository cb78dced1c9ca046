package lru

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRU(t *testing.T) {
	t.Parallel()

	a := assert.New(t)
	l := New[string, int](3)
	l.Add("one", 1)
	l.Add("two", 2)
	l.Add("three", 3)
	_, ok := l.Get("one")
	a.True(ok)
	a.Len(l.items, 3)
	a.Equal(l.list.Len(), 3)
	l.Add("four", 4)
	a.Len(l.items, 3)
	a.Equal(l.list.Len(), 3)

	_, ok = l.Get("two")
	a.False(ok)

	lruOrder := []string{"four", "one", "three"}
	el := l.list.Front()
	for _, v := range lruOrder {
		_, ok := l.items[v]
		a.True(ok)
		a.Equal(v, el.Value.(*entry[string, int]).key)
		el = el.Next()
	}

	l.Add("three", 33)
	v, ok := l.Get("three")
	a.True(ok)
	a.Equal(33, v)
	a.Equal(3, l.Len())
}

func TestLRURemove(t *testing.T) {
	t.Parallel()

	a := assert.New(t)
	l := New[string, int](4)
	l.Add("bert/1", 1)
	l.Add("bert/2", 2)
	l.Add("gpt/1", 3)

	l.Remove(func(k string) bool { return strings.HasPrefix(k, "bert/") })
	a.Equal(1, l.Len())
	a.Equal(1, l.list.Len())
	v, ok := l.Get("gpt/1")
	a.True(ok)
	a.Equal(3, v)
}
