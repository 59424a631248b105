package metadata

import (
	"sync"
	"sync/atomic"

	"github.com/prismrender/prism/engine/math"
)

// InvalidTextureSlot marks an unused bindless texture binding.
const InvalidTextureSlot uint16 = 0xFFFF

type MaterialFactors struct {
	Albedo    math.Vec4
	Emissive  math.Vec4
	Metallic  float32
	Roughness float32
}

// MaterialTextures are bindless slot indices; InvalidTextureSlot means the
// factor alone drives that channel.
type MaterialTextures struct {
	Albedo            uint16
	Normal            uint16
	MetallicRoughness uint16
	Emissive          uint16
}

func NoTextures() MaterialTextures {
	return MaterialTextures{
		Albedo:            InvalidTextureSlot,
		Normal:            InvalidTextureSlot,
		MetallicRoughness: InvalidTextureSlot,
		Emissive:          InvalidTextureSlot,
	}
}

// PackedMaterial is the 24-byte GPU representation of a material slot.
type PackedMaterial struct {
	Albedo            uint32 // rgba8 unorm
	Emissive          uint32 // rgba8 unorm
	MetallicRoughness uint32 // two packed unorm16
	TexturesA         uint32 // albedo slot | normal slot << 16
	TexturesB         uint32 // metallic-roughness slot | emissive slot << 16
	Flags             uint32
}

// MaterialMemory is one stable slot in the material GPU buffer. A slot is
// authoritative only once Uploaded is set; until then readers fall back to
// the material's previous slot.
type MaterialMemory struct {
	GpuIndex       uint32
	Uploaded       bool
	UploadInFlight bool
	UploadedFrame  uint64
}

// Material is the user-facing mutable surface description. Factor setters
// flip the dirty flag; the material system batches dirty materials and
// uploads them off the frame thread.
type Material struct {
	ID uint32

	mu       sync.Mutex
	factors  MaterialFactors
	textures MaterialTextures
	dirty    bool

	current  *MaterialMemory
	previous *MaterialMemory

	// Frame of the most recent factor change, for staleness checks against
	// the material system's last-updated stamp.
	UpdatedFrame uint64

	lastUsedFrame atomic.Uint64
}

func NewMaterial(id uint32, factors MaterialFactors, textures MaterialTextures) *Material {
	return &Material{
		ID:       id,
		factors:  factors,
		textures: textures,
		dirty:    true,
	}
}

func (m *Material) Lock()   { m.mu.Lock() }
func (m *Material) Unlock() { m.mu.Unlock() }

func (m *Material) SetAlbedoFactor(albedo math.Vec4) {
	m.mu.Lock()
	m.factors.Albedo = albedo
	m.dirty = true
	m.mu.Unlock()
}

func (m *Material) SetEmissiveFactor(emissive math.Vec4) {
	m.mu.Lock()
	m.factors.Emissive = emissive
	m.dirty = true
	m.mu.Unlock()
}

func (m *Material) SetMetallicFactor(metallic float32) {
	m.mu.Lock()
	m.factors.Metallic = metallic
	m.dirty = true
	m.mu.Unlock()
}

func (m *Material) SetRoughnessFactor(roughness float32) {
	m.mu.Lock()
	m.factors.Roughness = roughness
	m.dirty = true
	m.mu.Unlock()
}

func (m *Material) Factors() MaterialFactors {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.factors
}

// ConsumeDirty clears and returns the dirty flag in one step.
func (m *Material) ConsumeDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.dirty
	m.dirty = false
	return d
}

func (m *Material) MarkDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

func (m *Material) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// CurrentMemory returns the allocation the next upload writes to.
func (m *Material) CurrentMemory() *MaterialMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Material) PreviousMemory() *MaterialMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// SwapMemory retires the current allocation to previous and installs a fresh
// one. Returns the allocation that fell off the far end, whose slot the
// caller recycles under the deferred-reclamation rule.
func (m *Material) SwapMemory(next *MaterialMemory) *MaterialMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	retired := m.previous
	m.previous = m.current
	m.current = next
	return retired
}

// SetMemory installs the very first allocation, with no previous to fall
// back to.
func (m *Material) SetMemory(mem *MaterialMemory) {
	m.mu.Lock()
	m.current = mem
	m.mu.Unlock()
}

// GetCurrentlyUsedGpuIndex resolves the slot a reader may safely consume:
// the current allocation once uploaded, else the previous one. A material
// whose first upload has not landed yet reports InvalidID.
func (m *Material) GetCurrentlyUsedGpuIndex() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.Uploaded {
		return m.current.GpuIndex
	}
	if m.previous != nil && m.previous.Uploaded {
		return m.previous.GpuIndex
	}
	return InvalidID
}

func (m *Material) MarkUsed(frame uint64) {
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

func (m *Material) LastUsedFrame() uint64 {
	return m.lastUsedFrame.Load()
}

func (m *Material) AgedOut(currentFrame, swapBufferCount uint64) bool {
	last := m.lastUsedFrame.Load()
	if currentFrame < last {
		return false
	}
	return currentFrame-last > swapBufferCount
}

// Pack converts the floating factors into the compact GPU representation.
func (m *Material) Pack() PackedMaterial {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PackMaterialData(m.factors, m.textures)
}

func PackMaterialData(factors MaterialFactors, textures MaterialTextures) PackedMaterial {
	return PackedMaterial{
		Albedo:            packUnorm4x8(factors.Albedo),
		Emissive:          packUnorm4x8(factors.Emissive),
		MetallicRoughness: uint32(packUnorm16(factors.Metallic)) | uint32(packUnorm16(factors.Roughness))<<16,
		TexturesA:         uint32(textures.Albedo) | uint32(textures.Normal)<<16,
		TexturesB:         uint32(textures.MetallicRoughness) | uint32(textures.Emissive)<<16,
	}
}

func packUnorm4x8(v math.Vec4) uint32 {
	return uint32(packUnorm8(v.X)) |
		uint32(packUnorm8(v.Y))<<8 |
		uint32(packUnorm8(v.Z))<<16 |
		uint32(packUnorm8(v.W))<<24
}

func packUnorm8(f float32) uint8 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 0xFF
	}
	return uint8(f*255.0 + 0.5)
}

func packUnorm16(f float32) uint16 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 0xFFFF
	}
	return uint16(f*65535.0 + 0.5)
}
