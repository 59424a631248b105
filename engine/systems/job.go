package systems

import (
	"errors"
	"sync"

	"github.com/prismrender/prism/engine/core"
)

var (
	ErrNoWorkers    = errors.New("attempting to create a job system with less than one worker")
	ErrBadQueueSize = errors.New("job queue size must not be negative")
	ErrJobsStopped  = errors.New("job system has been shut down")
)

// JobTask is one unit of background work. OnStart runs on a worker
// goroutine; exactly one of OnComplete or OnFailure follows, on the same
// goroutine.
type JobTask struct {
	OnStart    func() error
	OnComplete func()
	OnFailure  func(error)
}

// JobSystem is a fixed worker pool draining a buffered task channel. The
// frame loop hands it fire-and-forget work (material uploads); Shutdown
// closes the channel and joins every worker, so once it returns no task is
// still running.
type JobSystem struct {
	queue chan JobTask
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewJobSystem(numWorkers, queueSize int) (*JobSystem, error) {
	if numWorkers < 1 {
		return nil, ErrNoWorkers
	}
	if queueSize < 0 {
		return nil, ErrBadQueueSize
	}

	js := &JobSystem{
		queue: make(chan JobTask, queueSize),
	}
	js.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go js.worker()
	}
	return js, nil
}

func (js *JobSystem) worker() {
	defer js.wg.Done()
	for task := range js.queue {
		if task.OnStart == nil {
			continue
		}
		if err := task.OnStart(); err != nil {
			if task.OnFailure != nil {
				task.OnFailure(err)
			} else {
				core.LogWarn("background task failed: %s", err.Error())
			}
			continue
		}
		if task.OnComplete != nil {
			task.OnComplete()
		}
	}
}

// Submit enqueues a task, blocking if the queue is full. Returns
// ErrJobsStopped after Shutdown.
func (js *JobSystem) Submit(task JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobsStopped
	}
	js.queue <- task
	return nil
}

// Shutdown stops accepting tasks, drains the queue and joins all workers.
// Safe to call more than once.
func (js *JobSystem) Shutdown() {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return
	}
	js.closed = true
	close(js.queue)
	js.mu.Unlock()

	js.wg.Wait()
}
