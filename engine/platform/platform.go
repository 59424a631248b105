package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/prismrender/prism/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window     *glfw.Window
	minimized  bool
	fullscreen bool
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(applicationName string, width, height uint32, fullscreen bool) error {
	if err := glfw.Init(); err != nil {
		core.LogFatal("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	var monitor *glfw.Monitor
	if fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, monitor, nil)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window
	p.fullscreen = fullscreen

	p.Window.SetKeyCallback(keyCallback)
	p.Window.SetMouseButtonCallback(mouseButtonCallback)
	p.Window.SetCursorPosCallback(cursorPosCallback)
	p.Window.SetScrollCallback(scrollCallback)
	p.Window.SetFramebufferSizeCallback(framebufferSizeCallback)
	p.Window.SetIconifyCallback(iconifyCallback)
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	glfw.Terminate()
	return nil
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// IsMinimized reports whether the presentation surface is currently hidden.
// A minimized surface skips GPU submission but not frame bookkeeping.
func (p *Platform) IsMinimized() bool {
	w, h := p.Window.GetFramebufferSize()
	return p.minimized || w == 0 || h == 0
}

func (p *Platform) IsFullScreen() bool {
	return p.fullscreen
}

func (p *Platform) Resolution() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// SetMode switches between windowed and fullscreen and resizes the window.
func (p *Platform) SetMode(fullscreen bool, width, height uint32) {
	if fullscreen == p.fullscreen {
		p.Window.SetSize(int(width), int(height))
		return
	}
	p.fullscreen = fullscreen
	if fullscreen {
		monitor := glfw.GetPrimaryMonitor()
		mode := monitor.GetVideoMode()
		p.Window.SetMonitor(monitor, 0, 0, int(width), int(height), mode.RefreshRate)
		return
	}
	p.Window.SetMonitor(nil, 100, 100, int(width), int(height), glfw.DontCare)
}

func (p *Platform) CreateVulkanSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		return 0, err
	}
	return surface, nil
}

func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	core.InputProcessKey(translateKey(key), action == glfw.Press)
}

func mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	var b core.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = core.BUTTON_LEFT
	case glfw.MouseButtonRight:
		b = core.BUTTON_RIGHT
	case glfw.MouseButtonMiddle:
		b = core.BUTTON_MIDDLE
	default:
		return
	}
	core.InputProcessButton(b, action == glfw.Press)
}

func cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	core.InputProcessMouseMove(int32(xpos), int32(ypos))
}

func scrollCallback(w *glfw.Window, xoff, yoff float64) {
	if yoff > 0 {
		core.InputProcessMouseWheel(1)
	} else if yoff < 0 {
		core.InputProcessMouseWheel(-1)
	}
}

func framebufferSizeCallback(w *glfw.Window, width, height int) {
	context := core.EventContext{}
	context.Data.U16[0] = uint16(width)
	context.Data.U16[1] = uint16(height)
	core.EventFire(core.EVENT_CODE_RESIZED, nil, context)
}

func iconifyCallback(w *glfw.Window, iconified bool) {
	context := core.EventContext{}
	if iconified {
		context.Data.U8[0] = 1
	}
	core.EventFire(core.EVENT_CODE_MINIMIZED, nil, context)
}

func translateKey(key glfw.Key) core.KeyCode {
	switch key {
	case glfw.KeyEscape:
		return core.KEY_ESCAPE
	case glfw.KeySpace:
		return core.KEY_SPACE
	case glfw.KeyEnter:
		return core.KEY_ENTER
	case glfw.KeyTab:
		return core.KEY_TAB
	case glfw.KeyLeftShift, glfw.KeyRightShift:
		return core.KEY_SHIFT
	case glfw.KeyLeftControl, glfw.KeyRightControl:
		return core.KEY_CONTROL
	case glfw.KeyLeft:
		return core.KEY_LEFT
	case glfw.KeyRight:
		return core.KEY_RIGHT
	case glfw.KeyUp:
		return core.KEY_UP
	case glfw.KeyDown:
		return core.KEY_DOWN
	case glfw.KeyW:
		return core.KEY_W
	case glfw.KeyA:
		return core.KEY_A
	case glfw.KeyS:
		return core.KEY_S
	case glfw.KeyD:
		return core.KEY_D
	case glfw.KeyQ:
		return core.KEY_Q
	case glfw.KeyE:
		return core.KEY_E
	default:
		if key >= glfw.KeyA && key <= glfw.KeyZ {
			return core.KeyCode(uint16(core.KEY_A) + uint16(key-glfw.KeyA))
		}
		return core.KEYS_MAX_KEYS
	}
}
