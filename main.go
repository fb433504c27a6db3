/*
Opens a window and keeps frames flowing through the frame coordinator until
the window is closed or the process is signalled.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-frames/engine"
)

func main() {
	var (
		configPath string
		maxFrames  uint64
	)
	flagSet := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagSet.StringVar(&configPath, "config", "anima.toml", "Path to the TOML configuration")
	flagSet.Uint64Var(&maxFrames, "frames", 0, "Stop after this many frames (0 runs until closed)")
	_ = flagSet.Parse(os.Args[1:])

	e, err := engine.New(engine.Options{ConfigPath: configPath, MaxFrames: maxFrames})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := e.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize engine: %v\n", err)
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		_ = e.Shutdown()
	}()

	// run engine
	if err := e.Run(); err != nil {
		os.Exit(1)
	}
}
