package core

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Monotonic ids are what the frame pipeline compares; the uuid exists so
// captures and logs can correlate a resource across runs.
var nextResourceID atomic.Uint64

type Identifier struct {
	ID   uint64
	UUID uuid.UUID
}

func NewIdentifier() Identifier {
	return Identifier{
		ID:   nextResourceID.Add(1),
		UUID: uuid.New(),
	}
}
