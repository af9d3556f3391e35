// Package config loads the engine's YAML configuration and watches it for
// live changes.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type RendererConfig struct {
	FramesInFlight int           `yaml:"frames_in_flight"`
	FenceTimeout   time.Duration `yaml:"fence_timeout"`
	ClearColor     [4]float32    `yaml:"clear_color"`
	FovY           float32       `yaml:"fov_y"`
	Near           float32       `yaml:"near"`
	Far            float32       `yaml:"far"`
	// PresentMode is "fifo", "mailbox" or "immediate". FIFO is the fallback
	// when the surface does not offer the requested mode.
	PresentMode string `yaml:"present_mode"`
	Wireframe   bool   `yaml:"wireframe"`
	Validation  bool   `yaml:"validation"`
}

type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Renderer RendererConfig `yaml:"renderer"`
	// Scene is a scene file; empty means the built-in scene.
	Scene string `yaml:"scene"`
	// Texture is an image file; empty means a generated checkerboard.
	Texture  string `yaml:"texture"`
	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "trianglego",
			Width:  1920,
			Height: 1200,
		},
		Renderer: RendererConfig{
			FramesInFlight: 2,
			FenceTimeout:   2 * time.Second,
			ClearColor:     [4]float32{0, 0, 0, 1},
			FovY:           45,
			Near:           0.1,
			Far:            20,
			PresentMode:    "fifo",
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var presentModes = map[string]bool{"fifo": true, "mailbox": true, "immediate": true}

func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	r := c.Renderer
	if r.FramesInFlight < 1 || r.FramesInFlight > 8 {
		return errors.Errorf("frames_in_flight %d out of range [1, 8]", r.FramesInFlight)
	}
	if r.FenceTimeout <= 0 {
		return errors.Errorf("fence_timeout must be positive, got %s", r.FenceTimeout)
	}
	if r.FovY <= 0 || r.FovY >= 180 {
		return errors.Errorf("fov_y %v out of range (0, 180)", r.FovY)
	}
	if r.Near <= 0 || r.Far <= r.Near {
		return errors.Errorf("clip planes near=%v far=%v: need 0 < near < far", r.Near, r.Far)
	}
	if !presentModes[strings.ToLower(r.PresentMode)] {
		return errors.Errorf("unknown present_mode %q", r.PresentMode)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel accepts the slog level names, case-insensitively. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Wrapf(err, "log_level %q", s)
	}
	return l, nil
}

// Level is the configured log level. The config must have been validated.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// Live is the subset of the configuration the running loop applies without
// a restart.
type Live struct {
	ClearColor [4]float32
	FovY       float32
	Wireframe  bool
	LogLevel   slog.Level
}

func (c *Config) Live() Live {
	return Live{
		ClearColor: c.Renderer.ClearColor,
		FovY:       c.Renderer.FovY,
		Wireframe:  c.Renderer.Wireframe,
		LogLevel:   c.Level(),
	}
}
