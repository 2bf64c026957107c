package registry

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New[string, int]()
	assert.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
}

func TestInsertAndGet(t *testing.T) {
	r := New[string, int]()

	assert.True(t, r.Insert("one", 1))
	assert.True(t, r.Insert("two", 2))

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestInsertDoesNotOverwrite(t *testing.T) {
	r := New[string, string]()

	require.True(t, r.Insert("key", "old"))
	assert.False(t, r.Insert("key", "new"))

	v, _ := r.Get("key")
	assert.Equal(t, "old", v)
}

func TestDelete(t *testing.T) {
	r := New[string, int]()
	r.Insert("key", 1)

	assert.True(t, r.Delete("key"))
	assert.False(t, r.Has("key"))
	assert.False(t, r.Delete("key"), "second delete reports absence")

	assert.True(t, r.Insert("key", 2), "key can be reused after delete")
}

func TestMutate(t *testing.T) {
	r := New[string, int]()
	r.Insert("a", 1)

	errTaken := errors.New("taken")
	err := r.Mutate(func(entries map[string]int) error {
		if _, ok := entries["a"]; ok {
			return errTaken
		}
		entries["b"] = 2
		return nil
	})
	assert.ErrorIs(t, err, errTaken)
	assert.False(t, r.Has("b"))

	err = r.Mutate(func(entries map[string]int) error {
		entries["b"] = 2
		return nil
	})
	require.NoError(t, err)
	assert.True(t, r.Has("b"))
}

func TestKeysAndClear(t *testing.T) {
	r := New[string, int]()
	r.Insert("b", 2)
	r.Insert("a", 1)

	keys := r.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b"}, keys)

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Keys())
}

func TestRangeSnapshot(t *testing.T) {
	r := New[string, int]()
	r.Insert("a", 1)
	r.Insert("b", 2)

	visited := 0
	r.Range(func(k string, _ int) bool {
		visited++
		r.Delete(k)
		r.Insert(k+"-new", 0)
		return true
	})

	assert.Equal(t, 2, visited)
	assert.Equal(t, 2, r.Len())
}

func TestRangeStopsEarly(t *testing.T) {
	r := New[int, int]()
	for i := 0; i < 10; i++ {
		r.Insert(i, i)
	}

	visited := 0
	r.Range(func(int, int) bool {
		visited++
		return visited < 3
	})
	assert.Equal(t, 3, visited)
}

func TestConcurrentInsertSingleWinner(t *testing.T) {
	r := New[string, int]()

	const goroutines = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			if r.Insert("contended", i) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, r.Len())
}
