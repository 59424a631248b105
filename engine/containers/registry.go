package containers

import (
	"fmt"
	"sync"
)

// RegistryEntry wraps a registered value with an explicit external reference
// count. The registry's own hold is implicit; Refs counts outside owners
// (live handles, in-flight frames).
type RegistryEntry[T any] struct {
	Value *T
	refs  int32
}

func (e *RegistryEntry[T]) Refs() int32 {
	return e.refs
}

// ConcurrentRegistry is a mutex-guarded collection of reference-counted
// entries. It is one of the few structures in the engine touched from more
// than one thread (frame loop, material upload worker, loader threads).
type ConcurrentRegistry[T any] struct {
	mu      sync.Mutex
	entries []*RegistryEntry[T]
}

func NewConcurrentRegistry[T any]() *ConcurrentRegistry[T] {
	return &ConcurrentRegistry[T]{}
}

// Add inserts a value and returns its entry. Nil values are rejected.
func (r *ConcurrentRegistry[T]) Add(value *T) (*RegistryEntry[T], error) {
	if value == nil {
		return nil, fmt.Errorf("cannot register a nil value")
	}
	entry := &RegistryEntry[T]{Value: value}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return entry, nil
}

// Acquire increments the external reference count of an entry.
func (r *ConcurrentRegistry[T]) Acquire(entry *RegistryEntry[T]) {
	r.mu.Lock()
	entry.refs++
	r.mu.Unlock()
}

// Release decrements the external reference count of an entry.
func (r *ConcurrentRegistry[T]) Release(entry *RegistryEntry[T]) {
	r.mu.Lock()
	if entry.refs > 0 {
		entry.refs--
	}
	r.mu.Unlock()
}

// Each runs fn over every entry under the lock. fn must not re-enter the
// registry.
func (r *ConcurrentRegistry[T]) Each(fn func(*RegistryEntry[T])) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		fn(e)
	}
}

// Len reports the number of registered entries.
func (r *ConcurrentRegistry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RemoveUnused scans a window of entries and removes those with no external
// references for which the predicate holds. The predicate doubles as the
// cleanup hook (e.g. destroying a GPU buffer) and runs while the lock is
// held; it must not re-enter the registry. Returns the number removed.
func (r *ConcurrentRegistry[T]) RemoveUnused(predicate func(*T) bool, offset, count int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if offset < 0 || offset >= len(r.entries) {
		return 0
	}
	end := offset + count
	if count <= 0 || end > len(r.entries) {
		end = len(r.entries)
	}

	removed := 0
	kept := r.entries[:offset:offset]
	for i := offset; i < end; i++ {
		e := r.entries[i]
		if e.refs == 0 && predicate(e.Value) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = append(kept, r.entries[end:]...)
	return removed
}

// RemoveAll unconditionally runs cleanup over every entry and clears the
// collection. Shutdown only: the caller has already waited for all GPU work,
// so in-flight safety no longer applies.
func (r *ConcurrentRegistry[T]) RemoveAll(cleanup func(*T)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		cleanup(e.Value)
	}
	r.entries = nil
}
