//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderSources = []string{
	"deferred_geometry.vert",
	"deferred_geometry.frag",
	"deferred_lighting.vert",
	"deferred_lighting.frag",
}

// Compiles every GLSL source under shaders/src into SPIR-V under
// shaders/bin, named <shader>.<stage>.spv as the renderer expects.
func (Build) Shaders() error {
	return buildShaders()
}

func buildShaders() error {
	if err := os.MkdirAll("shaders/bin", 0o755); err != nil {
		return err
	}
	for _, src := range shaderSources {
		in := filepath.Join("shaders", "src", src)
		out := filepath.Join("shaders", "bin", src+".spv")
		if _, err := executeCmd("glslc", withArgs(in, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the engine binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/prism", "."), withStream()); err != nil {
		return err
	}
	fmt.Println("Built bin/prism")
	return nil
}
