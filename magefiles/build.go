//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderSources = []string{"scene.vert", "scene.frag"}

// Compiles the GLSL sources in shaders/ to SPIR-V under assets/shaders/.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the shaders and the grove binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Build engine...")
	_, err := executeCmd("go", withArgs("build", "-o", "bin/grove", "."), withStream())
	return err
}

func buildShaders() error {
	for _, src := range shaderSources {
		out := filepath.Join("assets", "shaders", src+".spv")
		if _, err := executeCmd("glslc", withArgs(filepath.Join("shaders", src), "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}
