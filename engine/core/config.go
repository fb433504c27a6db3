package core

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	X      uint32 `toml:"x"`
	Y      uint32 `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	// "vulkan" or "headless".
	Backend        string `toml:"backend"`
	FramesInFlight uint8  `toml:"frames_in_flight"`
	// Preferred present mode; the swapchain falls back to mailbox, then fifo.
	PresentMode string `toml:"present_mode"`
	// Preferred surface format; the swapchain falls back to sRGB, then the first supported.
	SurfaceFormat string `toml:"surface_format"`
	// Zero means wait forever. A bounded wait that expires is fatal.
	FenceTimeoutMS uint64     `toml:"fence_timeout_ms"`
	Validation     bool       `toml:"validation"`
	ClearColor     [4]float32 `toml:"clear_color"`
	VertexShader   string     `toml:"vertex_shader"`
	FragmentShader string     `toml:"fragment_shader"`
	// Only used by the headless backend.
	HeadlessImageCount uint32 `toml:"headless_image_count"`
}

type LogConfig struct {
	Level        string `toml:"level"`
	Prefix       string `toml:"prefix"`
	TimeFormat   string `toml:"time_format"`
	ReportCaller bool   `toml:"report_caller"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`
}

var (
	knownBackends     = []string{"vulkan", "headless"}
	knownPresentModes = []string{"", "mailbox", "fifo", "fifo_relaxed", "immediate"}
)

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "anima frames",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			Backend:            "vulkan",
			FramesInFlight:     2,
			PresentMode:        "mailbox",
			SurfaceFormat:      "b8g8r8a8_srgb",
			ClearColor:         [4]float32{0.0, 0.0, 0.2, 1.0},
			HeadlessImageCount: 3,
		},
		Log: LogConfig{
			Level:        "info",
			ReportCaller: true,
		},
	}
}

// ParseConfig decodes TOML on top of the defaults, so a file only needs the
// keys it wants to change.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		err = fmt.Errorf("failed to decode config: %w", err)
		LogError(err.Error())
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		LogError(err.Error())
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads path. A missing file is not an error: defaults are returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		LogInfo("config file %s not found, using defaults", path)
		return DefaultConfig(), nil
	}
	if err != nil {
		err = fmt.Errorf("failed to read config %s: %w", path, err)
		LogError(err.Error())
		return nil, err
	}
	return ParseConfig(data)
}

func (c *Config) Validate() error {
	if c.Renderer.FramesInFlight == 0 {
		return fmt.Errorf("renderer.frames_in_flight must be at least 1")
	}
	if !slices.Contains(knownBackends, c.Renderer.Backend) {
		return fmt.Errorf("renderer.backend %q is not one of %v", c.Renderer.Backend, knownBackends)
	}
	if !slices.Contains(knownPresentModes, c.Renderer.PresentMode) {
		return fmt.Errorf("renderer.present_mode %q is not one of %v", c.Renderer.PresentMode, knownPresentModes[1:])
	}
	if (c.Renderer.VertexShader == "") != (c.Renderer.FragmentShader == "") {
		return fmt.Errorf("renderer.vertex_shader and renderer.fragment_shader must be set together")
	}
	if c.Renderer.Backend == "headless" && c.Renderer.HeadlessImageCount == 0 {
		return fmt.Errorf("renderer.headless_image_count must be at least 1")
	}
	return nil
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
