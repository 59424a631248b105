package systems

import (
	"sync"

	"github.com/prismrender/prism/engine/config"
	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

// fakeBackend records calls so tests can assert frame-pipeline bookkeeping
// without a GPU.
type fakeBackend struct {
	mu sync.Mutex

	initialized  bool
	drawCalls    int
	drawErr      error
	meshCreates  int
	meshDestroys int
	createErr    error
	writes       [][]renderer.MaterialSlotWrite
	writeErr     error
	onWrite      func([]renderer.MaterialSlotWrite)
	resizes      [][2]uint32
	waitIdles    int
	shutdowns    int
}

var _ renderer.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) Initialize(cfg *config.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = true
	return nil
}

func (f *fakeBackend) DrawFrame(dd *metadata.DrawData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drawCalls++
	return f.drawErr
}

func (f *fakeBackend) Resized(width, height uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]uint32{width, height})
	return nil
}

func (f *fakeBackend) CreateMeshData(mesh *metadata.Mesh, vertices []math.Vertex, indices []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.meshCreates++
	vertexBytes := uint64(len(vertices)) * uint64(44)
	mesh.VertexCount = uint32(len(vertices))
	mesh.VertexElementSize = 44
	mesh.IndexCount = uint32(len(indices))
	mesh.IndexByteOffset = metadata.AlignIndexOffset(vertexBytes)
	mesh.TotalSize = mesh.IndexByteOffset + uint64(len(indices))*4
	mesh.RendererData = &struct{}{}
	return nil
}

func (f *fakeBackend) DestroyMeshData(mesh *metadata.Mesh) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meshDestroys++
	mesh.RendererData = nil
}

func (f *fakeBackend) WriteMaterialSlots(writes []renderer.MaterialSlotWrite) error {
	f.mu.Lock()
	onWrite := f.onWrite
	f.mu.Unlock()
	if onWrite != nil {
		onWrite(writes)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	batch := make([]renderer.MaterialSlotWrite, len(writes))
	copy(batch, writes)
	f.writes = append(f.writes, batch)
	return nil
}

func (f *fakeBackend) WaitIdle() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitIdles++
	return nil
}

func (f *fakeBackend) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

func (f *fakeBackend) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeBackend) lastWrite() []renderer.MaterialSlotWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}
