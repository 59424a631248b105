package renderer

import (
	"github.com/prismrender/prism/engine/config"
	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

// MaterialSlotWrite is one packed material bound for its stable GPU slot.
type MaterialSlotWrite struct {
	GpuIndex uint32
	Data     metadata.PackedMaterial
}

// Backend is the GPU half of the frame pipeline. The systems layer performs
// all CPU-side bookkeeping (snapshot ownership, reclamation, material
// batching) and delegates everything that touches the device to this
// interface. There is exactly one real implementation (vulkan.Renderer);
// tests substitute fakes.
type Backend interface {
	Initialize(cfg *config.Config) error

	// DrawFrame uploads the snapshot's instance and indirection data into
	// the current frame slot, records the render stages pipelined one frame
	// behind, submits and presents. Aborts the frame on any driver failure.
	DrawFrame(dd *metadata.DrawData) error

	Resized(width, height uint32) error

	// CreateMeshData uploads vertices+indices into a single GPU buffer with
	// a 16-byte aligned index region. Synchronous: blocks on an upload
	// fence. Concurrent creators serialize on an internal mutex.
	CreateMeshData(mesh *metadata.Mesh, vertices []math.Vertex, indices []uint32) error
	DestroyMeshData(mesh *metadata.Mesh)

	// WriteMaterialSlots writes one batch of packed materials to their
	// stable slots in the material buffer.
	WriteMaterialSlots(writes []MaterialSlotWrite) error

	WaitIdle() error
	Shutdown() error
}
