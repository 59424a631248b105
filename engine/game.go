package engine

import (
	"github.com/prismrender/prism/engine/config"
	"github.com/prismrender/prism/engine/renderer/metadata"
	"github.com/prismrender/prism/engine/systems"
)

// Game is the application side of the engine: configuration plus the
// callbacks the run loop drives every frame. Render returns the frame's
// snapshot; the engine hands it to the renderer system untouched.
type Game struct {
	Config        *config.Config
	SystemManager *systems.SystemManager
	State         interface{}

	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(deltaTime float64) (*metadata.DrawData, error)
type OnResize func(width uint32, height uint32) error
