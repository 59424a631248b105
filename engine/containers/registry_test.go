package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dummyResource struct {
	id        int
	destroyed bool
}

func TestRegistryAddRejectsNil(t *testing.T) {
	r := NewConcurrentRegistry[dummyResource]()
	_, err := r.Add(nil)
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRemoveUnusedSkipsReferenced(t *testing.T) {
	r := NewConcurrentRegistry[dummyResource]()
	a, err := r.Add(&dummyResource{id: 1})
	require.NoError(t, err)
	_, err = r.Add(&dummyResource{id: 2})
	require.NoError(t, err)

	r.Acquire(a)

	removed := r.RemoveUnused(func(d *dummyResource) bool {
		d.destroyed = true
		return true
	}, 0, 0)

	// Only the unreferenced entry may go.
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, r.Len())
	assert.False(t, a.Value.destroyed)

	r.Release(a)
	removed = r.RemoveUnused(func(d *dummyResource) bool { return true }, 0, 0)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRemoveUnusedHonorsPredicate(t *testing.T) {
	r := NewConcurrentRegistry[dummyResource]()
	for i := 0; i < 3; i++ {
		_, err := r.Add(&dummyResource{id: i})
		require.NoError(t, err)
	}

	removed := r.RemoveUnused(func(d *dummyResource) bool {
		return d.id == 1
	}, 0, 0)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryRemoveUnusedWindow(t *testing.T) {
	r := NewConcurrentRegistry[dummyResource]()
	for i := 0; i < 5; i++ {
		_, err := r.Add(&dummyResource{id: i})
		require.NoError(t, err)
	}

	// Window covers entries 1 and 2 only.
	removed := r.RemoveUnused(func(d *dummyResource) bool { return true }, 1, 2)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 3, r.Len())

	ids := []int{}
	r.Each(func(e *RegistryEntry[dummyResource]) { ids = append(ids, e.Value.id) })
	assert.Equal(t, []int{0, 3, 4}, ids)
}

func TestRegistryRemoveAll(t *testing.T) {
	r := NewConcurrentRegistry[dummyResource]()
	entries := make([]*RegistryEntry[dummyResource], 0, 3)
	for i := 0; i < 3; i++ {
		e, err := r.Add(&dummyResource{id: i})
		require.NoError(t, err)
		entries = append(entries, e)
	}
	// Even referenced entries are destroyed at shutdown.
	r.Acquire(entries[0])

	cleaned := 0
	r.RemoveAll(func(d *dummyResource) { cleaned++ })
	assert.Equal(t, 3, cleaned)
	assert.Equal(t, 0, r.Len())
}
