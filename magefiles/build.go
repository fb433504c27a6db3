//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaders = []string{"triangle.vert", "triangle.frag"}

// Compiles the GLSL shaders in shaders/ to SPIR-V with glslc.
func (Build) Shaders() error {
	for _, s := range shaders {
		if _, err := executeCmd("glslc", withArgs("shaders/"+s, "-o", "shaders/"+s+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the engine binary into bin/.
func (Build) Engine() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/anima-frames", "."), withStream())
	return err
}
