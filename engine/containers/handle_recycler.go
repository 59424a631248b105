package containers

import "golang.org/x/exp/constraints"

// HandleRecycler issues small integer handles from a monotonic counter and
// hands previously recycled handles back out first. It does no bounds
// checking; the caller owns capacity limits. Not thread-safe — callers that
// share a recycler add their own locking.
type HandleRecycler[T constraints.Unsigned] struct {
	next  T
	freed []T
}

func NewHandleRecycler[T constraints.Unsigned]() *HandleRecycler[T] {
	return &HandleRecycler[T]{}
}

// GetHandle returns the front of the free list when one is available,
// otherwise the next value of the monotonic counter.
func (h *HandleRecycler[T]) GetHandle() T {
	if len(h.freed) > 0 {
		handle := h.freed[0]
		h.freed = h.freed[1:]
		return handle
	}
	handle := h.next
	h.next++
	return handle
}

// Recycle returns a handle to the free list. The caller must not recycle a
// handle it still uses; double recycling hands the same handle out twice.
func (h *HandleRecycler[T]) Recycle(handle T) {
	h.freed = append(h.freed, handle)
}

// IssuedCount reports how many distinct handles the monotonic counter has
// produced so far, recycled or not.
func (h *HandleRecycler[T]) IssuedCount() T {
	return h.next
}

// FreeCount reports how many handles currently sit on the free list.
func (h *HandleRecycler[T]) FreeCount() int {
	return len(h.freed)
}
