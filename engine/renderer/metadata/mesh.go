package metadata

import (
	"sync/atomic"

	"github.com/prismrender/prism/engine/core"
)

const InvalidID uint32 = 0xFFFFFFFF

// indexAlignment pads the index region inside the combined vertex+index
// buffer so index reads start on a 16-byte boundary.
const indexAlignment uint64 = 16

// Mesh is one GPU-resident vertex+index buffer pair living in a single
// allocation. The frame pipeline only ever inspects LastUsedFrame; everything
// else is set once at upload.
type Mesh struct {
	Identifier core.Identifier

	VertexCount       uint32
	VertexElementSize uint32
	IndexCount        uint32

	// Byte offset of the index region inside the combined buffer.
	IndexByteOffset uint64
	TotalSize       uint64

	// Backend-owned buffer state, opaque to this package.
	RendererData interface{}

	lastUsedFrame atomic.Uint64
}

// AlignIndexOffset returns the padded byte offset for the index region
// following a vertex region of the given size.
func AlignIndexOffset(vertexBytes uint64) uint64 {
	return (vertexBytes + indexAlignment - 1) &^ (indexAlignment - 1)
}

// MarkUsed stamps the mesh with the frame that referenced it. Extending the
// stamp keeps the mesh alive even if the caller drops its handle right after
// submission.
func (m *Mesh) MarkUsed(frame uint64) {
	for {
		last := m.lastUsedFrame.Load()
		if frame <= last {
			return
		}
		if m.lastUsedFrame.CompareAndSwap(last, frame) {
			return
		}
	}
}

func (m *Mesh) LastUsedFrame() uint64 {
	return m.lastUsedFrame.Load()
}

// AgedOut reports whether every frame slot that might still reference this
// mesh has been retired: the mesh must survive SwapBufferCount frames past
// its last use and becomes reclaimable strictly after that.
func (m *Mesh) AgedOut(currentFrame, swapBufferCount uint64) bool {
	last := m.lastUsedFrame.Load()
	if currentFrame < last {
		return false
	}
	return currentFrame-last > swapBufferCount
}
