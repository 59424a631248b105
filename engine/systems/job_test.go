package systems

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewJobSystemRejectsBadArguments(t *testing.T) {
	_, err := NewJobSystem(0, 4)
	assert.ErrorIs(t, err, ErrNoWorkers)

	_, err = NewJobSystem(2, -1)
	assert.ErrorIs(t, err, ErrBadQueueSize)
}

func TestJobSystemRunsTasksAndCallsComplete(t *testing.T) {
	js, err := NewJobSystem(2, 8)
	assert.NoError(t, err)

	var started, completed atomic.Int32
	for i := 0; i < 16; i++ {
		err := js.Submit(JobTask{
			OnStart: func() error {
				started.Add(1)
				return nil
			},
			OnComplete: func() {
				completed.Add(1)
			},
		})
		assert.NoError(t, err)
	}

	js.Shutdown()
	assert.Equal(t, int32(16), started.Load())
	assert.Equal(t, int32(16), completed.Load())
}

func TestJobSystemRoutesFailures(t *testing.T) {
	js, err := NewJobSystem(1, 1)
	assert.NoError(t, err)

	boom := errors.New("boom")
	var got atomic.Value
	err = js.Submit(JobTask{
		OnStart:   func() error { return boom },
		OnFailure: func(err error) { got.Store(err) },
	})
	assert.NoError(t, err)

	js.Shutdown()
	assert.Equal(t, boom, got.Load())
}

func TestJobSystemShutdownJoinsAndRejectsLateWork(t *testing.T) {
	js, err := NewJobSystem(4, 16)
	assert.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 32; i++ {
		_ = js.Submit(JobTask{
			OnStart: func() error {
				ran.Add(1)
				return nil
			},
		})
	}

	// Shutdown drains everything already queued before returning.
	js.Shutdown()
	assert.Equal(t, int32(32), ran.Load())

	err = js.Submit(JobTask{OnStart: func() error { return nil }})
	assert.ErrorIs(t, err, ErrJobsStopped)

	// Idempotent.
	js.Shutdown()
}
