package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds every knob the renderer reads at Initialize time. Values can
// come from code or from a TOML file; missing fields keep their defaults.
type Config struct {
	WindowTitle    string `toml:"window_title"`
	Debug          bool   `toml:"debug"`
	DebugVerbosity uint32 `toml:"debug_verbosity"`
	DeviceIndex    int    `toml:"device_index"`
	Width          uint32 `toml:"width"`
	Height         uint32 `toml:"height"`
	Fullscreen     bool   `toml:"fullscreen"`
	VSync          bool   `toml:"vsync"`

	// Number of swapchain images requested. Clamped against the surface
	// capabilities during device initialization.
	SwapBufferCount uint32 `toml:"swap_buffer_count"`

	ClearColor  [4]float32 `toml:"clear_color"`
	PixelFormat string     `toml:"pixel_format"`
	ShadersPath string     `toml:"shaders_path"`

	MaxBindlessTextures uint32 `toml:"max_bindless_textures"`
	MaxBindlessBuffers  uint32 `toml:"max_bindless_buffers"`
	MaxMaterialCount    uint32 `toml:"max_material_count"`

	// Frames between reclamation sweeps over meshes and material slots.
	CleanupInterval uint64 `toml:"cleanup_interval"`
}

func Default() *Config {
	return &Config{
		WindowTitle:         "Prism",
		Debug:               false,
		DeviceIndex:         0,
		Width:               1280,
		Height:              720,
		VSync:               true,
		SwapBufferCount:     3,
		ClearColor:          [4]float32{0.0, 0.0, 0.2, 1.0},
		PixelFormat:         "B8G8R8A8_UNORM",
		ShadersPath:         "shaders/bin",
		MaxBindlessTextures: 1024,
		MaxBindlessBuffers:  1024,
		MaxMaterialCount:    1024,
		CleanupInterval:     64,
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("resolution must be non-zero, got %dx%d", c.Width, c.Height)
	}
	if c.MaxMaterialCount == 0 {
		return fmt.Errorf("max_material_count must be > 0")
	}
	if c.SwapBufferCount < 2 {
		c.SwapBufferCount = 2
	}
	if c.SwapBufferCount > 3 {
		c.SwapBufferCount = 3
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 64
	}
	return nil
}
