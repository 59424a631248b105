package vulkan

import "sync"

// QueueLockPool serializes submissions per queue family. Vulkan queues are
// externally synchronized; the frame loop, the transfer uploads fired by the
// deferred stage and synchronous mesh creation can all hit the same family.
type QueueLockPool struct {
	mu      sync.Mutex
	mutexes map[uint32]*sync.Mutex
}

func NewQueueLockPool() *QueueLockPool {
	return &QueueLockPool{
		mutexes: make(map[uint32]*sync.Mutex),
	}
}

func (q *QueueLockPool) lockFor(familyIndex uint32) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.mutexes[familyIndex]; !exists {
		q.mutexes[familyIndex] = &sync.Mutex{}
	}
	return q.mutexes[familyIndex]
}

// SafeQueueCall runs fn while holding the mutex of the given queue family.
func (q *QueueLockPool) SafeQueueCall(familyIndex uint32, fn func() error) error {
	l := q.lockFor(familyIndex)
	l.Lock()
	defer l.Unlock()
	return fn()
}
