//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the engine with anima.toml.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "anima.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs a few hundred frames on the headless backend; no window or GPU needed.
func (Run) Headless() error {
	fmt.Println("Run headless...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "headless.toml", "-frames", "600"), withStream()); err != nil {
		return err
	}
	return nil
}
