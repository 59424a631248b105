package systems

import (
	"github.com/prismrender/prism/engine/config"
	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/platform"
	"github.com/prismrender/prism/engine/renderer"
	"github.com/prismrender/prism/engine/renderer/vulkan"
)

const (
	jobWorkerCount = 2
	jobQueueSize   = 32
)

// SystemManager wires the engine subsystems together in dependency order
// and tears them down in reverse.
type SystemManager struct {
	Config   *config.Config
	Platform *platform.Platform

	Jobs      *JobSystem
	Meshes    *MeshSystem
	Materials *MaterialSystem
	Renderer  *RendererSystem

	backend renderer.Backend
}

func NewSystemManager(cfg *config.Config, p *platform.Platform) (*SystemManager, error) {
	backend := vulkan.New(p)

	jobs, err := NewJobSystem(jobWorkerCount, jobQueueSize)
	if err != nil {
		return nil, err
	}

	meshes := NewMeshSystem(backend, cfg.SwapBufferCount)
	materials := NewMaterialSystem(backend, cfg.MaxMaterialCount, cfg.SwapBufferCount)

	return &SystemManager{
		Config:    cfg,
		Platform:  p,
		Jobs:      jobs,
		Meshes:    meshes,
		Materials: materials,
		Renderer:  NewRendererSystem(cfg, p, backend, meshes, materials, jobs),
		backend:   backend,
	}, nil
}

func (sm *SystemManager) Initialize() error {
	if err := core.InputInitialize(); err != nil {
		return err
	}
	if err := sm.Renderer.Initialize(); err != nil {
		return err
	}
	core.LogInfo("all systems initialized")
	return nil
}

// Shutdown tears the systems down in reverse creation order. The renderer's
// CleanUp joins the job workers and idles the GPU before anything else is
// released.
func (sm *SystemManager) Shutdown() error {
	if !sm.Renderer.CleanUp() {
		core.LogWarn("renderer cleanup reported failures")
	}
	if err := core.InputShutdown(); err != nil {
		core.LogWarn("input shutdown failed: %s", err.Error())
	}
	core.LogInfo("all systems stopped")
	return nil
}
