package engine

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/platform"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
	"github.com/spaghettifunk/anima-frames/engine/renderer/headless"
	"github.com/spaghettifunk/anima-frames/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	EngineStageShutDown
)

type Options struct {
	ConfigPath string
	// Stop after this many presented frames. Zero runs until Shutdown or
	// the window closes.
	MaxFrames uint64
	// Recorder overrides the default clear-and-triangle recorder.
	Recorder frames.CommandRecorder
}

type Engine struct {
	currentStage Stage
	opts         Options
	config       *core.Config

	platform    *platform.Platform
	device      frames.GraphicsDevice
	coordinator *frames.Coordinator
	watcher     *core.ConfigWatcher
	clock       *core.Clock

	isRunning atomic.Bool
}

func New(opts Options) (*Engine, error) {
	cfg := core.DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = core.LoadConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		opts:         opts,
		config:       cfg,
		clock:        core.NewClock(),
	}, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine already initialized")
	}
	e.currentStage = EngineStageInitializing
	core.ConfigureLogger(e.config.Log)

	rc := e.config.Renderer
	extent := frames.Extent2D{Width: e.config.Window.Width, Height: e.config.Window.Height}

	switch rc.Backend {
	case "headless":
		opts := headless.DefaultOptions()
		opts.Extent = extent
		opts.MinImageCount = rc.HeadlessImageCount
		opts.MaxImageCount = rc.HeadlessImageCount
		e.device = headless.New(opts)
	default:
		e.platform = platform.New()
		if err := e.platform.Startup(e.config.Window); err != nil {
			return err
		}
		// HiDPI displays report a framebuffer larger than the window.
		extent.Width, extent.Height = e.platform.FramebufferSize()
		device, err := vulkan.New(e.platform, vulkan.Options{
			AppName:    e.config.Window.Title,
			Validation: rc.Validation,
		})
		if err != nil {
			_ = e.platform.Shutdown()
			return err
		}
		e.device = device
	}

	opts, err := e.coordinatorOptions(extent)
	if err != nil {
		e.releaseDevice()
		return err
	}
	e.coordinator, err = frames.Initialize(e.device, opts)
	if err != nil {
		e.releaseDevice()
		return err
	}
	if e.platform != nil {
		e.platform.SetResizeHandler(e.coordinator.NotifyResize)
	}

	if e.opts.ConfigPath != "" {
		watcher, err := core.NewConfigWatcher(e.opts.ConfigPath, e.onConfigChange)
		if err != nil {
			core.LogWarn("config hot reload disabled: %s", err)
		} else {
			e.watcher = watcher
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized with the %s backend", rc.Backend)
	return nil
}

func (e *Engine) coordinatorOptions(extent frames.Extent2D) (frames.Options, error) {
	rc := e.config.Renderer
	format, err := frames.ParseFormat(rc.SurfaceFormat)
	if err != nil {
		core.LogError(err.Error())
		return frames.Options{}, err
	}
	mode, err := frames.ParsePresentMode(rc.PresentMode)
	if err != nil {
		core.LogError(err.Error())
		return frames.Options{}, err
	}
	opts := frames.Options{
		FramesInFlight: rc.FramesInFlight,
		Extent:         extent,
		SurfaceFormat:  frames.SurfaceFormat{Format: format, ColorSpace: frames.ColorSpaceSRGBNonlinear},
		PresentMode:    mode,
		Recorder:       e.opts.Recorder,
		ClearColor:     rc.ClearColor,
		FenceTimeout:   time.Duration(rc.FenceTimeoutMS) * time.Millisecond,
	}
	if rc.VertexShader != "" {
		if opts.VertexShader, err = loadShader(rc.VertexShader); err != nil {
			return frames.Options{}, err
		}
		if opts.FragmentShader, err = loadShader(rc.FragmentShader); err != nil {
			return frames.Options{}, err
		}
	}
	return opts, nil
}

func loadShader(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to load shader %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	return code, nil
}

// onConfigChange applies the settings that can change at runtime. Anything
// else needs a restart.
func (e *Engine) onConfigChange(cfg *core.Config) {
	core.ConfigureLogger(cfg.Log)
	mode, err := frames.ParsePresentMode(cfg.Renderer.PresentMode)
	if err != nil {
		core.LogWarn(err.Error())
		return
	}
	e.coordinator.SetPresentMode(mode)
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine is not initialized")
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	defer e.teardown()

	e.clock.Start()
	e.clock.Update()
	lastTime := e.clock.Elapsed()
	lastReport := lastTime

	metrics := e.coordinator.Metrics()
	for e.isRunning.Load() {
		if e.platform != nil && !e.platform.PumpMessages() {
			break
		}

		if err := e.coordinator.DrawFrame(); err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.coordinator.FrameNumber(), err)
			return err
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		metrics.Update(currentTime - lastTime)
		lastTime = currentTime

		if currentTime-lastReport >= time.Second {
			lastReport = currentTime
			s := metrics.Snapshot()
			core.LogDebug("%.0f fps, %s avg frame, %d presents, %d rebuilds", s.FPS, s.FrameTime, s.Presents, s.Rebuilds)
		}

		if e.opts.MaxFrames > 0 && e.coordinator.FrameNumber() >= e.opts.MaxFrames {
			break
		}
	}
	return nil
}

// Shutdown asks a running engine to stop. Run returns once the current frame
// is done and everything is released. Safe to call from any goroutine.
func (e *Engine) Shutdown() error {
	if !e.isRunning.CompareAndSwap(true, false) {
		return fmt.Errorf("engine is not running")
	}
	core.LogInfo("shutdown requested")
	return nil
}

func (e *Engine) teardown() {
	e.isRunning.Store(false)
	e.currentStage = EngineStageShuttingDown
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			core.LogWarn(err.Error())
		}
	}
	if err := e.coordinator.Shutdown(); err != nil {
		core.LogError("coordinator shutdown: %s", err)
	}
	if e.platform != nil {
		_ = e.platform.Shutdown()
	}
	e.currentStage = EngineStageShutDown

	s := e.coordinator.Metrics().Snapshot()
	core.LogInfo("engine stopped after %d frames: %d rebuilds, %d suboptimal, %d out of date", e.coordinator.FrameNumber(), s.Rebuilds, s.Suboptimal, s.OutOfDate)
}

func (e *Engine) releaseDevice() {
	e.device.Destroy()
	if e.platform != nil {
		_ = e.platform.Shutdown()
	}
}

func (e *Engine) Stage() Stage { return e.currentStage }

func (e *Engine) Coordinator() *frames.Coordinator { return e.coordinator }
