package engine

import (
	"fmt"

	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/platform"
	"github.com/prismrender/prism/engine/renderer/metadata"
	"github.com/prismrender/prism/engine/systems"
)

type Stage uint8

const (
	EngineStageUninitialized Stage = iota
	EngineStageInitializing
	EngineStageInitialized
	EngineStageRunning
	EngineStageShuttingDown
)

// Engine owns the run loop: pump OS messages, advance the clock, let the
// game build a snapshot, hand it to the renderer system, update metrics.
type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	isRunning     bool
	isSuspended   bool
	platform      *platform.Platform
	systemManager *systems.SystemManager
	width         uint32
	height        uint32
	clock         *core.Clock
	lastTime      float64
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.Config == nil {
		return nil, fmt.Errorf("game instance and config are required")
	}
	if err := g.Config.Validate(); err != nil {
		return nil, err
	}
	core.SetLogLevel(core.LogLevel(g.Config.DebugVerbosity))

	p := platform.New()
	sm, err := systems.NewSystemManager(g.Config, p)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	g.SystemManager = sm

	return &Engine{
		currentStage:  EngineStageUninitialized,
		gameInstance:  g,
		clock:         core.NewClock(),
		platform:      p,
		systemManager: sm,
		isRunning:     true,
		isSuspended:   false,
		width:         g.Config.Width,
		height:        g.Config.Height,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_MINIMIZED, e, e.onMinimized)

	// Input must exist before the window: glfw callbacks feed it as soon as
	// the window is up.
	if err := core.InputInitialize(); err != nil {
		return err
	}

	cfg := e.gameInstance.Config
	if err := e.platform.Startup(cfg.WindowTitle, cfg.Width, cfg.Height, cfg.Fullscreen); err != nil {
		return err
	}

	if err := e.systemManager.Initialize(); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			e.isRunning = false
			break
		}

		if e.isSuspended {
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err.Error())
				e.isRunning = false
				break
			}
		}

		var dd *metadata.DrawData
		if e.gameInstance.FnRender != nil {
			var err error
			dd, err = e.gameInstance.FnRender(delta)
			if err != nil {
				core.LogError("game render failed, shutting down: %s", err.Error())
				e.isRunning = false
				break
			}
		}

		if !e.systemManager.Renderer.DrawFrame(dd) {
			core.LogError("frame submission failed, shutting down")
			e.isRunning = false
			break
		}

		e.clock.Update()
		core.MetricsUpdate(e.clock.Elapsed() - currentTime)
		e.lastTime = currentTime
	}

	return e.Shutdown()
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if err := core.EventSystemShutdown(); err != nil {
		return err
	}
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	return e.platform.Shutdown()
}

func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("quit event received, stopping")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width := uint32(data.Data.U16[0])
	height := uint32(data.Data.U16[1])
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height

	if width == 0 || height == 0 {
		core.LogInfo("window minimized, suspending")
		e.isSuspended = true
		return true
	}
	e.isSuspended = false

	e.systemManager.Renderer.NotifyFramebufferResized(width, height)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogWarn("game resize handler failed: %s", err.Error())
		}
	}
	return true
}

func (e *Engine) onMinimized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	e.isSuspended = data.Data.U8[0] == 1
	if !e.isSuspended {
		// Coming back from the tray: the clock kept running, skip the gap.
		e.clock.Update()
		e.lastTime = e.clock.Elapsed()
	}
	return true
}
