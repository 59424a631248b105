package metadata

import (
	"fmt"

	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer/components"
)

// Snapshot-local handles. A handle is only meaningful inside the DrawData
// that issued it; every Add call returns a new handle even for the same
// underlying resource (no implicit dedup).
type (
	MeshRef        uint32
	MaterialRef    uint32
	InstanceHandle uint32
	DrawCallHandle uint32
	DrawPassHandle uint32
)

// PackedInstance is the per-instance record uploaded to the GPU instance
// buffer: 64 bytes of transform plus the snapshot-local material reference
// the indirection table resolves to a live GPU slot at upload time.
type PackedInstance struct {
	Transform   math.Mat4
	MaterialRef uint32
	CustomID    uint32
	Pad         [2]uint32
}

type DrawCall struct {
	Mesh      MeshRef
	Instances []InstanceHandle
}

type DrawPass struct {
	Calls []DrawCallHandle
}

// DrawData is the scene snapshot for exactly one frame. It is populated
// through the builder methods and becomes logically immutable once sealed by
// submission; the frame ring owns it until that frame's fence signals.
type DrawData struct {
	Camera *components.Camera

	meshes    []*Mesh
	materials []*Material
	lights    []Light
	instances []PackedInstance
	drawCalls []DrawCall
	passes    []DrawPass

	sealed bool
}

func NewDrawData() *DrawData {
	return &DrawData{}
}

func (dd *DrawData) SetCamera(camera *components.Camera) {
	if dd.sealed {
		core.LogWarn("SetCamera called on a submitted snapshot, ignoring")
		return
	}
	dd.Camera = camera
}

func (dd *DrawData) AddLight(light Light) {
	if dd.sealed {
		core.LogWarn("AddLight called on a submitted snapshot, ignoring")
		return
	}
	light.CastsShadow = false
	dd.lights = append(dd.lights, light)
}

func (dd *DrawData) AddLightWithShadow(light Light) {
	if dd.sealed {
		core.LogWarn("AddLightWithShadow called on a submitted snapshot, ignoring")
		return
	}
	light.CastsShadow = true
	dd.lights = append(dd.lights, light)
}

// AddMesh registers a mesh for this snapshot and returns its snapshot-local
// reference. Registering the same mesh twice yields two references.
func (dd *DrawData) AddMesh(mesh *Mesh) (MeshRef, error) {
	if dd.sealed {
		return 0, fmt.Errorf("cannot add a mesh to a submitted snapshot")
	}
	if mesh == nil {
		return 0, fmt.Errorf("cannot add a nil mesh")
	}
	dd.meshes = append(dd.meshes, mesh)
	return MeshRef(len(dd.meshes) - 1), nil
}

func (dd *DrawData) AddMaterial(material *Material) (MaterialRef, error) {
	if dd.sealed {
		return 0, fmt.Errorf("cannot add a material to a submitted snapshot")
	}
	if material == nil {
		return 0, fmt.Errorf("cannot add a nil material")
	}
	dd.materials = append(dd.materials, material)
	return MaterialRef(len(dd.materials) - 1), nil
}

func (dd *DrawData) AddInstance(transform math.Mat4, material MaterialRef, customID uint32) (InstanceHandle, error) {
	if dd.sealed {
		return 0, fmt.Errorf("cannot add an instance to a submitted snapshot")
	}
	if int(material) >= len(dd.materials) {
		return 0, fmt.Errorf("material ref %d was not registered in this snapshot", material)
	}
	dd.instances = append(dd.instances, PackedInstance{
		Transform:   transform,
		MaterialRef: uint32(material),
		CustomID:    customID,
	})
	return InstanceHandle(len(dd.instances) - 1), nil
}

func (dd *DrawData) AddDrawCall(mesh MeshRef, instances []InstanceHandle) (DrawCallHandle, error) {
	if dd.sealed {
		return 0, fmt.Errorf("cannot add a draw call to a submitted snapshot")
	}
	if int(mesh) >= len(dd.meshes) {
		return 0, fmt.Errorf("mesh ref %d was not registered in this snapshot", mesh)
	}
	if len(instances) == 0 {
		return 0, fmt.Errorf("a draw call needs at least one instance")
	}
	for _, ih := range instances {
		if int(ih) >= len(dd.instances) {
			return 0, fmt.Errorf("instance handle %d was not registered in this snapshot", ih)
		}
	}
	call := DrawCall{Mesh: mesh, Instances: append([]InstanceHandle(nil), instances...)}
	dd.drawCalls = append(dd.drawCalls, call)
	return DrawCallHandle(len(dd.drawCalls) - 1), nil
}

func (dd *DrawData) AddDeferredShadingDrawPass(calls []DrawCallHandle) (DrawPassHandle, error) {
	if dd.sealed {
		return 0, fmt.Errorf("cannot add a draw pass to a submitted snapshot")
	}
	for _, ch := range calls {
		if int(ch) >= len(dd.drawCalls) {
			return 0, fmt.Errorf("draw call handle %d was not registered in this snapshot", ch)
		}
	}
	pass := DrawPass{Calls: append([]DrawCallHandle(nil), calls...)}
	dd.passes = append(dd.passes, pass)
	return DrawPassHandle(len(dd.passes) - 1), nil
}

// Seal marks the snapshot as submitted. Builder methods refuse to mutate a
// sealed snapshot.
func (dd *DrawData) Seal() {
	dd.sealed = true
}

func (dd *DrawData) IsSealed() bool {
	return dd.sealed
}

func (dd *DrawData) Meshes() []*Mesh         { return dd.meshes }
func (dd *DrawData) Materials() []*Material  { return dd.materials }
func (dd *DrawData) Lights() []Light         { return dd.lights }
func (dd *DrawData) Instances() []PackedInstance {
	return dd.instances
}
func (dd *DrawData) DrawCalls() []DrawCall { return dd.drawCalls }
func (dd *DrawData) Passes() []DrawPass    { return dd.passes }

func (dd *DrawData) MeshCount() int     { return len(dd.meshes) }
func (dd *DrawData) MaterialCount() int { return len(dd.materials) }
func (dd *DrawData) LightCount() int    { return len(dd.lights) }
func (dd *DrawData) InstanceCount() int { return len(dd.instances) }
func (dd *DrawData) DrawCallCount() int { return len(dd.drawCalls) }
func (dd *DrawData) PassCount() int     { return len(dd.passes) }

// BuildIndirection resolves every registered material to the GPU slot a
// reader may safely consume this frame. Index i corresponds to MaterialRef i.
func (dd *DrawData) BuildIndirection() []uint32 {
	table := make([]uint32, len(dd.materials))
	for i, mat := range dd.materials {
		table[i] = mat.GetCurrentlyUsedGpuIndex()
	}
	return table
}

// PackedLights converts the snapshot's lights to the GPU layout.
func (dd *DrawData) PackedLights() []PackedLight {
	packed := make([]PackedLight, len(dd.lights))
	for i, l := range dd.lights {
		packed[i] = l.Pack()
	}
	return packed
}
