package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(3), cfg.SwapBufferCount)
}

func TestValidateClampsSwapBufferCount(t *testing.T) {
	cfg := Default()
	cfg.SwapBufferCount = 1
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(2), cfg.SwapBufferCount)

	cfg.SwapBufferCount = 8
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(3), cfg.SwapBufferCount)
}

func TestValidateRejectsZeroResolution(t *testing.T) {
	cfg := Default()
	cfg.Width = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prism.toml")
	content := `
window_title = "test"
width = 800
height = 600
swap_buffer_count = 2
max_material_count = 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.WindowTitle)
	assert.Equal(t, uint32(800), cfg.Width)
	assert.Equal(t, uint32(2), cfg.SwapBufferCount)
	assert.Equal(t, uint32(64), cfg.MaxMaterialCount)
	// Untouched fields keep defaults.
	assert.Equal(t, "shaders/bin", cfg.ShadersPath)
}
