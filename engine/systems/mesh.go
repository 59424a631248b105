package systems

import (
	"sync"

	"github.com/prismrender/prism/engine/containers"
	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

// MeshUpload describes one mesh in a batch creation request.
type MeshUpload struct {
	Vertices []math.Vertex
	Indices  []uint32
}

// MeshSystem owns mesh lifetime: creation uploads through the backend
// (synchronous, fence-waited), destruction is deferred until the age rule
// proves no in-flight frame still references the buffer.
type MeshSystem struct {
	backend         renderer.Backend
	registry        *containers.ConcurrentRegistry[metadata.Mesh]
	swapBufferCount uint64

	entryMu sync.Mutex
	entries map[*metadata.Mesh]*containers.RegistryEntry[metadata.Mesh]
}

func NewMeshSystem(backend renderer.Backend, swapBufferCount uint32) *MeshSystem {
	return &MeshSystem{
		backend:         backend,
		registry:        containers.NewConcurrentRegistry[metadata.Mesh](),
		swapBufferCount: uint64(swapBufferCount),
		entries:         make(map[*metadata.Mesh]*containers.RegistryEntry[metadata.Mesh]),
	}
}

// CreateMesh validates and uploads one mesh. Invalid input or a failed
// upload logs a warning and yields a nil handle; the session continues.
func (ms *MeshSystem) CreateMesh(vertices []math.Vertex, indices []uint32) *metadata.Mesh {
	if len(vertices) == 0 {
		core.LogWarn("rejecting mesh with zero vertices")
		return nil
	}
	if len(indices) == 0 {
		core.LogWarn("rejecting mesh with zero indices")
		return nil
	}

	mesh := &metadata.Mesh{Identifier: core.NewIdentifier()}
	if err := ms.backend.CreateMeshData(mesh, vertices, indices); err != nil {
		core.LogWarn("mesh upload failed: %s", err.Error())
		return nil
	}

	entry, err := ms.registry.Add(mesh)
	if err != nil {
		ms.backend.DestroyMeshData(mesh)
		core.LogWarn("mesh registration failed: %s", err.Error())
		return nil
	}

	ms.registry.Acquire(entry)
	ms.entryMu.Lock()
	ms.entries[mesh] = entry
	ms.entryMu.Unlock()

	return mesh
}

// CreateMeshes uploads a batch in order. Failed items leave a nil hole in
// the result instead of aborting the rest.
func (ms *MeshSystem) CreateMeshes(uploads []MeshUpload) []*metadata.Mesh {
	meshes := make([]*metadata.Mesh, len(uploads))
	for i, u := range uploads {
		meshes[i] = ms.CreateMesh(u.Vertices, u.Indices)
	}
	return meshes
}

// CreateMeshFromShape generates procedural geometry (cube, sphere, plane)
// with the config's transform baked in and uploads it.
func (ms *MeshSystem) CreateMeshFromShape(cfg metadata.ShapeConfig) *metadata.Mesh {
	vertices, indices, err := metadata.GenerateShape(cfg)
	if err != nil {
		core.LogWarn("shape generation failed: %s", err.Error())
		return nil
	}
	return ms.CreateMesh(vertices, indices)
}

// DestroyMesh drops the creator's reference. The GPU buffer is freed by a
// later sweep, once the mesh has aged out of every frame slot.
func (ms *MeshSystem) DestroyMesh(mesh *metadata.Mesh) {
	if mesh == nil {
		return
	}
	ms.entryMu.Lock()
	entry := ms.entries[mesh]
	ms.entryMu.Unlock()
	if entry != nil {
		ms.registry.Release(entry)
	}
}

// Sweep removes unreferenced meshes that have aged out, destroying their
// GPU buffers. Returns the number removed.
func (ms *MeshSystem) Sweep(currentFrame uint64) int {
	return ms.registry.RemoveUnused(func(m *metadata.Mesh) bool {
		if !m.AgedOut(currentFrame, ms.swapBufferCount) {
			return false
		}
		ms.backend.DestroyMeshData(m)
		ms.entryMu.Lock()
		delete(ms.entries, m)
		ms.entryMu.Unlock()
		return true
	}, 0, ms.registry.Len())
}

func (ms *MeshSystem) Count() int {
	return ms.registry.Len()
}

// Shutdown frees every mesh unconditionally. The caller has already idled
// the GPU.
func (ms *MeshSystem) Shutdown() {
	ms.registry.RemoveAll(func(m *metadata.Mesh) {
		ms.backend.DestroyMeshData(m)
	})
	ms.entryMu.Lock()
	ms.entries = make(map[*metadata.Mesh]*containers.RegistryEntry[metadata.Mesh])
	ms.entryMu.Unlock()
}
