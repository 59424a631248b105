package systems

import (
	"errors"

	"github.com/prismrender/prism/engine/config"
	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/platform"
	"github.com/prismrender/prism/engine/renderer"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

// RendererSystem is the CPU half of the frame pipeline: snapshot intake,
// mark-used stamping, reclamation sweeps and material upload dispatch. Work
// that touches the device goes through the Backend; this system never
// imports Vulkan.
type RendererSystem struct {
	cfg      *config.Config
	platform *platform.Platform
	backend  renderer.Backend

	meshes    *MeshSystem
	materials *MaterialSystem
	jobs      *JobSystem

	// Frame counter doubling as the reclamation clock. Advances on every
	// DrawFrame call, including empty-snapshot no-ops.
	frameCounter uint64
}

func NewRendererSystem(cfg *config.Config, p *platform.Platform, backend renderer.Backend,
	meshes *MeshSystem, materials *MaterialSystem, jobs *JobSystem) *RendererSystem {
	return &RendererSystem{
		cfg:       cfg,
		platform:  p,
		backend:   backend,
		meshes:    meshes,
		materials: materials,
		jobs:      jobs,
	}
}

func (rs *RendererSystem) Initialize() error {
	return rs.backend.Initialize(rs.cfg)
}

// DrawFrame consumes one snapshot. Returns true when the frame completed or
// was legitimately skipped (empty snapshot, minimized window, swapchain
// rebuilding), false only on a real submission failure.
func (rs *RendererSystem) DrawFrame(dd *metadata.DrawData) bool {
	rs.frameCounter++
	frame := rs.frameCounter

	if rs.cfg.CleanupInterval > 0 && frame%rs.cfg.CleanupInterval == 0 {
		removedMeshes := rs.meshes.Sweep(frame)
		removedMaterials := rs.materials.Sweep(frame)
		if removedMeshes > 0 || removedMaterials > 0 {
			core.LogDebug("sweep at frame %d reclaimed %d meshes, %d materials",
				frame, removedMeshes, removedMaterials)
		}
	}

	// An empty snapshot is a valid frame: nothing to record, but the
	// reclamation clock has already moved.
	if dd == nil || dd.PassCount() == 0 {
		return true
	}

	dd.Seal()
	for _, m := range dd.Meshes() {
		m.MarkUsed(frame)
	}
	for _, m := range dd.Materials() {
		m.MarkUsed(frame)
	}

	if rs.materials.HasPendingUploads() {
		if err := rs.jobs.Submit(JobTask{
			OnStart: func() error {
				return rs.materials.UploadData(frame)
			},
			OnFailure: func(err error) {
				core.LogWarn("material upload batch failed: %s", err.Error())
			},
		}); err != nil {
			// Worker pool already shut down; upload inline so the frame
			// still sees fresh materials eventually.
			if err := rs.materials.UploadData(frame); err != nil {
				core.LogWarn("material upload failed: %s", err.Error())
			}
		}
	}

	if rs.platform != nil && rs.platform.IsMinimized() {
		return true
	}

	if err := rs.backend.DrawFrame(dd); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return true
		}
		core.LogError("frame %d aborted: %s", frame, err.Error())
		return false
	}
	return true
}

// Resize switches display mode and propagates the new framebuffer size to
// the backend.
func (rs *RendererSystem) Resize(fullscreen bool, width, height uint32) bool {
	if rs.platform != nil {
		rs.platform.SetMode(fullscreen, width, height)
	}
	if err := rs.backend.Resized(width, height); err != nil {
		core.LogError("resize to %dx%d failed: %s", width, height, err.Error())
		return false
	}
	return true
}

// NotifyFramebufferResized forwards an OS-driven size change to the backend
// without touching the window mode.
func (rs *RendererSystem) NotifyFramebufferResized(width, height uint32) {
	if err := rs.backend.Resized(width, height); err != nil {
		core.LogError("resize to %dx%d failed: %s", width, height, err.Error())
	}
}

func (rs *RendererSystem) IsFullScreen() bool {
	return rs.platform != nil && rs.platform.IsFullScreen()
}

func (rs *RendererSystem) GetResolution() (uint32, uint32) {
	if rs.platform == nil {
		return 0, 0
	}
	return rs.platform.Resolution()
}

func (rs *RendererSystem) QueryInput() core.InputBatch {
	return core.QueryInput()
}

func (rs *RendererSystem) FrameCounter() uint64 {
	return rs.frameCounter
}

// CleanUp joins the worker pool before any GPU teardown, then drains the
// registries and shuts the backend down.
func (rs *RendererSystem) CleanUp() bool {
	rs.jobs.Shutdown()

	if err := rs.backend.WaitIdle(); err != nil {
		core.LogError("wait idle failed during shutdown: %s", err.Error())
	}

	rs.meshes.Shutdown()
	rs.materials.Shutdown()

	if err := rs.backend.Shutdown(); err != nil {
		core.LogError("backend shutdown failed: %s", err.Error())
		return false
	}
	return true
}
