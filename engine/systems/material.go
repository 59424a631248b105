package systems

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prismrender/prism/engine/containers"
	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/renderer"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

// MaterialUploader is the slice of the backend the material system needs:
// writing packed material batches to their stable GPU slots.
type MaterialUploader interface {
	WriteMaterialSlots(writes []renderer.MaterialSlotWrite) error
}

// retiredSlot is a GPU slot that fell off a material's current/previous
// pair. In-flight frames may still read it, so it is recycled only once
// every frame slot that could reference it has retired.
type retiredSlot struct {
	gpuIndex     uint32
	retiredFrame uint64
}

// MaterialSystem owns material lifetime and the dirty-batch upload path.
// Every material holds a current and a previous GPU slot; new factor data
// always lands in a fresh slot so readers keep consuming the old one until
// the upload is proven complete.
type MaterialSystem struct {
	uploader        MaterialUploader
	maxMaterials    uint32
	swapBufferCount uint64

	registry *containers.ConcurrentRegistry[metadata.Material]

	entryMu sync.Mutex
	entries map[*metadata.Material]*containers.RegistryEntry[metadata.Material]

	slotMu  sync.Mutex
	slots   *containers.HandleRecycler[uint32]
	retired []retiredSlot

	// Serializes UploadData; a batch in flight must finish before the next
	// one starts so slot swaps never interleave.
	uploadMu sync.Mutex

	lastUpdatedFrame atomic.Uint64
	nextID           atomic.Uint32
}

func NewMaterialSystem(uploader MaterialUploader, maxMaterials uint32, swapBufferCount uint32) *MaterialSystem {
	return &MaterialSystem{
		uploader:        uploader,
		maxMaterials:    maxMaterials,
		swapBufferCount: uint64(swapBufferCount),
		registry:        containers.NewConcurrentRegistry[metadata.Material](),
		entries:         make(map[*metadata.Material]*containers.RegistryEntry[metadata.Material]),
		slots:           containers.NewHandleRecycler[uint32](),
	}
}

// allocSlot issues a GPU slot index. The buffer holds two slots per
// material, so exhaustion here means the double-buffered budget is gone.
func (ms *MaterialSystem) allocSlot() (uint32, error) {
	ms.slotMu.Lock()
	defer ms.slotMu.Unlock()
	if ms.slots.FreeCount() == 0 && ms.slots.IssuedCount() >= 2*ms.maxMaterials {
		return 0, fmt.Errorf("%w: material slot budget exhausted (%d slots)",
			core.ErrResourceCreation, 2*ms.maxMaterials)
	}
	return ms.slots.GetHandle(), nil
}

func (ms *MaterialSystem) recycleSlot(index uint32) {
	ms.slotMu.Lock()
	ms.slots.Recycle(index)
	ms.slotMu.Unlock()
}

// CreateMaterial registers a new material and marks it dirty so the next
// upload batch carries it. Fails explicitly once MaxMaterialCount live
// materials exist; the caller gets a nil handle and an error, never a panic.
func (ms *MaterialSystem) CreateMaterial(factors metadata.MaterialFactors, textures metadata.MaterialTextures) (*metadata.Material, error) {
	if uint32(ms.registry.Len()) >= ms.maxMaterials {
		err := fmt.Errorf("%w: material count limit reached (%d)", core.ErrResourceCreation, ms.maxMaterials)
		core.LogWarn(err.Error())
		return nil, err
	}

	slot, err := ms.allocSlot()
	if err != nil {
		core.LogWarn(err.Error())
		return nil, err
	}

	material := metadata.NewMaterial(ms.nextID.Add(1)-1, factors, textures)
	material.SetMemory(&metadata.MaterialMemory{GpuIndex: slot})

	entry, err := ms.registry.Add(material)
	if err != nil {
		ms.recycleSlot(slot)
		return nil, fmt.Errorf("%w: %s", core.ErrResourceCreation, err.Error())
	}

	// The creator holds the first external reference until DestroyMaterial.
	ms.registry.Acquire(entry)
	ms.entryMu.Lock()
	ms.entries[material] = entry
	ms.entryMu.Unlock()

	return material, nil
}

// DestroyMaterial drops the creator's reference. The material stays alive
// until every in-flight frame that referenced it has retired; the next
// sweep past that point reclaims it.
func (ms *MaterialSystem) DestroyMaterial(material *metadata.Material) {
	if material == nil {
		return
	}
	ms.entryMu.Lock()
	entry := ms.entries[material]
	ms.entryMu.Unlock()
	if entry != nil {
		ms.registry.Release(entry)
	}
}

// HasPendingUploads reports whether any registered material is dirty.
func (ms *MaterialSystem) HasPendingUploads() bool {
	pending := false
	ms.registry.Each(func(e *containers.RegistryEntry[metadata.Material]) {
		if !pending && e.Value.IsDirty() {
			pending = true
		}
	})
	return pending
}

// UploadData collects every dirty material, installs a fresh slot as its
// current memory and writes the packed batch through the uploader. Single
// flight: a second caller blocks until the first batch lands. A material
// whose slot still has an upload in flight keeps its dirty flag and is
// picked up by the next batch instead.
func (ms *MaterialSystem) UploadData(frame uint64) error {
	ms.uploadMu.Lock()
	defer ms.uploadMu.Unlock()

	var batch []*metadata.Material
	ms.registry.Each(func(e *containers.RegistryEntry[metadata.Material]) {
		m := e.Value
		if mem := m.CurrentMemory(); mem != nil && mem.UploadInFlight {
			return
		}
		if m.ConsumeDirty() {
			batch = append(batch, m)
		}
	})
	if len(batch) == 0 {
		return nil
	}

	writes := make([]renderer.MaterialSlotWrite, 0, len(batch))
	uploading := batch[:0]
	for _, m := range batch {
		slot, err := ms.allocSlot()
		if err != nil {
			// Out of slots this cycle; retry once retired slots recycle.
			core.LogWarn("material %d upload deferred: %s", m.ID, err.Error())
			m.MarkDirty()
			continue
		}
		retired := m.SwapMemory(&metadata.MaterialMemory{
			GpuIndex:       slot,
			UploadInFlight: true,
		})
		if retired != nil {
			ms.slotMu.Lock()
			ms.retired = append(ms.retired, retiredSlot{gpuIndex: retired.GpuIndex, retiredFrame: frame})
			ms.slotMu.Unlock()
		}
		writes = append(writes, renderer.MaterialSlotWrite{GpuIndex: slot, Data: m.Pack()})
		uploading = append(uploading, m)
	}
	if len(writes) == 0 {
		return nil
	}

	if err := ms.uploader.WriteMaterialSlots(writes); err != nil {
		for _, m := range uploading {
			m.Lock()
			if mem := m.CurrentMemory(); mem != nil {
				mem.UploadInFlight = false
			}
			m.Unlock()
			m.MarkDirty()
		}
		return fmt.Errorf("material batch upload failed: %w", err)
	}

	for _, m := range uploading {
		m.Lock()
		if mem := m.CurrentMemory(); mem != nil {
			mem.UploadInFlight = false
			mem.Uploaded = true
			mem.UploadedFrame = frame
		}
		m.Unlock()
	}
	ms.lastUpdatedFrame.Store(frame)
	return nil
}

func (ms *MaterialSystem) LastUpdatedFrame() uint64 {
	return ms.lastUpdatedFrame.Load()
}

// Sweep recycles retired slots whose grace period has passed and removes
// unreferenced materials that have aged out of every frame slot. Returns
// the number of materials removed.
func (ms *MaterialSystem) Sweep(currentFrame uint64) int {
	ms.slotMu.Lock()
	kept := ms.retired[:0]
	for _, r := range ms.retired {
		if currentFrame > r.retiredFrame && currentFrame-r.retiredFrame > ms.swapBufferCount {
			ms.slots.Recycle(r.gpuIndex)
		} else {
			kept = append(kept, r)
		}
	}
	ms.retired = kept
	ms.slotMu.Unlock()

	return ms.registry.RemoveUnused(func(m *metadata.Material) bool {
		if !m.AgedOut(currentFrame, ms.swapBufferCount) {
			return false
		}
		ms.releaseSlots(m)
		ms.entryMu.Lock()
		delete(ms.entries, m)
		ms.entryMu.Unlock()
		return true
	}, 0, ms.registry.Len())
}

// releaseSlots returns a removed material's current and previous slots to
// the recycler. Only called once the age rule proves no frame references
// the material.
func (ms *MaterialSystem) releaseSlots(m *metadata.Material) {
	ms.slotMu.Lock()
	if mem := m.CurrentMemory(); mem != nil {
		ms.slots.Recycle(mem.GpuIndex)
	}
	if mem := m.PreviousMemory(); mem != nil {
		ms.slots.Recycle(mem.GpuIndex)
	}
	ms.slotMu.Unlock()
}

func (ms *MaterialSystem) Count() int {
	return ms.registry.Len()
}

// Shutdown drops every material unconditionally. The caller has already
// idled the GPU.
func (ms *MaterialSystem) Shutdown() {
	ms.registry.RemoveAll(func(m *metadata.Material) {})
	ms.entryMu.Lock()
	ms.entries = make(map[*metadata.Material]*containers.RegistryEntry[metadata.Material])
	ms.entryMu.Unlock()
	ms.slotMu.Lock()
	ms.retired = nil
	ms.slotMu.Unlock()
}
