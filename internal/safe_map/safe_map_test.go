package safe_map

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeMap_StoreLoadDelete(t *testing.T) {
	m := NewSafeMap[string, int]()

	_, ok := m.Load("000000ff")
	assert.False(t, ok)

	m.Store("000000ff", 1)
	v, ok := m.Load("000000ff")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, m.Len())

	m.Delete("000000ff")
	assert.Equal(t, 0, m.Len())

	m.Store("a", 1)
	m.Store("b", 2)
	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestSafeMap_ConcurrentStore(t *testing.T) {
	m := NewSafeMap[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Store(n, n*n)
			m.Load(n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, m.Len())
}
