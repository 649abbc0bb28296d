// Package config reads the viewer and picture tool settings from TOML and maps them onto engine options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/pelletier/go-toml/v2"
)

// Config is the root of a configuration file.
type Config struct {
	Window           WindowConfig           `toml:"window"`
	Renderer         RendererConfig         `toml:"renderer"`
	AmbientOcclusion AmbientOcclusionConfig `toml:"ambient_occlusion"`
	Picture          PictureConfig          `toml:"picture"`
	Log              LogConfig              `toml:"log"`
}

// WindowConfig is the [window] section.
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// RendererConfig is the [renderer] section.
type RendererConfig struct {
	// Backend is "wgpu" or "software".
	Backend string `toml:"backend"`
	// MSAA is the sample count of the scene target, 1 or 4.
	MSAA int `toml:"msaa"`
	// PresentMode is "vsync" or "uncapped".
	PresentMode string `toml:"present_mode"`
	// RenderQuality is "low", "medium", "high" or "picture".
	RenderQuality string           `toml:"render_quality"`
	Background    BackgroundConfig `toml:"background"`
	GlowRadius    float32          `toml:"glow_radius"`
	// Workers is the resource encoding worker count; 0 picks one less than the CPU count.
	Workers     int  `toml:"workers"`
	BoundingBox bool `toml:"bounding_box"`
}

// BackgroundConfig is the [renderer.background] table. Colors are RGB or RGBA in 0..1.
type BackgroundConfig struct {
	// Type is "color", "linear" or "radial".
	Type   string    `toml:"type"`
	Color1 []float32 `toml:"color1"`
	Color2 []float32 `toml:"color2"`
}

// AmbientOcclusionConfig is the [ambient_occlusion] section.
type AmbientOcclusionConfig struct {
	Enabled bool `toml:"enabled"`
	// Async bakes on a background goroutine after each reload instead of inside it.
	Async bool `toml:"async"`
}

// PictureConfig is the [picture] section.
type PictureConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	// ImageQuality is "rgb16", "rgb8", "cmyk16" or "cmyk8".
	ImageQuality string `toml:"image_quality"`
	// RenderQuality overrides [renderer].render_quality for pictures. Empty means "picture".
	RenderQuality string `toml:"render_quality"`
	// Output is the file written; an empty extension takes the one matching ImageQuality.
	Output string `toml:"output"`
}

// LogConfig is the [log] section.
type LogConfig struct {
	// Level is a slog level name: "debug", "info", "warn" or "error".
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - *Config: a valid configuration
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "oxy-crystal",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			Backend:       "wgpu",
			MSAA:          4,
			PresentMode:   "vsync",
			RenderQuality: "high",
			Background: BackgroundConfig{
				Type:   "color",
				Color1: []float32{0.08, 0.08, 0.1, 1},
				Color2: []float32{0.25, 0.25, 0.3, 1},
			},
			GlowRadius: renderer.DefaultGlowRadius,
		},
		AmbientOcclusion: AmbientOcclusionConfig{
			Enabled: true,
			Async:   true,
		},
		Picture: PictureConfig{
			Width:        1920,
			Height:       1080,
			ImageQuality: "rgb16",
			Output:       "picture",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads and validates a configuration file. Keys missing from the file keep their defaults.
//
// Parameters:
//   - path: the TOML file
//
// Returns:
//   - *Config: the configuration
//   - error: error if the file cannot be read or is invalid
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates TOML text over the defaults. Unknown keys are errors.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - *Config: the configuration
//   - error: error if decoding or validation fails
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every enumerated and ranged value and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window: size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if _, err := c.BackendType(); err != nil {
		errs = append(errs, err)
	}
	if c.Renderer.MSAA != int(renderer.MSAAOff) && c.Renderer.MSAA != int(renderer.MSAA4x) {
		errs = append(errs, fmt.Errorf("renderer: msaa must be 1 or 4, got %d", c.Renderer.MSAA))
	}
	if _, err := c.PresentMode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RenderQuality(); err != nil {
		errs = append(errs, fmt.Errorf("renderer: %w", err))
	}
	if _, err := c.Background(); err != nil {
		errs = append(errs, err)
	}
	if c.Renderer.Workers < 0 {
		errs = append(errs, fmt.Errorf("renderer: workers must not be negative"))
	}
	if c.Picture.Width <= 0 || c.Picture.Height <= 0 {
		errs = append(errs, fmt.Errorf("picture: size %dx%d must be positive", c.Picture.Width, c.Picture.Height))
	}
	if _, err := c.ImageQuality(); err != nil {
		errs = append(errs, fmt.Errorf("picture: %w", err))
	}
	if _, err := c.PictureRenderQuality(); err != nil {
		errs = append(errs, fmt.Errorf("picture: %w", err))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BackendType maps [renderer].backend onto a renderer backend.
func (c *Config) BackendType() (renderer.RendererBackendType, error) {
	switch strings.ToLower(c.Renderer.Backend) {
	case "wgpu", "":
		return renderer.BackendTypeWGPU, nil
	case "software":
		return renderer.BackendTypeSoftware, nil
	default:
		return 0, fmt.Errorf("renderer: unknown backend %q", c.Renderer.Backend)
	}
}

// PresentMode maps [renderer].present_mode onto a renderer present mode.
func (c *Config) PresentMode() (renderer.PresentMode, error) {
	switch strings.ToLower(c.Renderer.PresentMode) {
	case "vsync", "":
		return renderer.PresentModeVSync, nil
	case "uncapped":
		return renderer.PresentModeUncapped, nil
	default:
		return 0, fmt.Errorf("renderer: unknown present mode %q", c.Renderer.PresentMode)
	}
}

// RenderQuality parses [renderer].render_quality.
func (c *Config) RenderQuality() (scene.RenderQuality, error) {
	return scene.ParseRenderQuality(c.Renderer.RenderQuality)
}

// PictureRenderQuality parses [picture].render_quality, defaulting to scene.QualityPicture.
func (c *Config) PictureRenderQuality() (scene.RenderQuality, error) {
	if c.Picture.RenderQuality == "" {
		return scene.QualityPicture, nil
	}
	return scene.ParseRenderQuality(c.Picture.RenderQuality)
}

// ImageQuality parses [picture].image_quality.
func (c *Config) ImageQuality() (scene.ImageQuality, error) {
	return scene.ParseImageQuality(c.Picture.ImageQuality)
}

// Background converts [renderer.background] into a scene background.
//
// Returns:
//   - scene.Background: the background fill
//   - error: error if the type is unknown or a color does not have 3 or 4 components
func (c *Config) Background() (scene.Background, error) {
	typ, err := scene.ParseBackgroundType(c.Renderer.Background.Type)
	if err != nil {
		return scene.Background{}, fmt.Errorf("renderer.background: %w", err)
	}
	c1, err := rgba(c.Renderer.Background.Color1)
	if err != nil {
		return scene.Background{}, fmt.Errorf("renderer.background: color1: %w", err)
	}
	c2, err := rgba(c.Renderer.Background.Color2)
	if err != nil {
		return scene.Background{}, fmt.Errorf("renderer.background: color2: %w", err)
	}
	return scene.Background{Type: typ, Color1: c1, Color2: c2}, nil
}

// LogLevel parses [log].level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log: %w", err)
	}
	return level, nil
}

// StructureStyle returns the style loaded structures are given.
func (c *Config) StructureStyle() scene.Style {
	style := scene.DefaultStyle()
	style.AmbientOcclusion = c.AmbientOcclusion.Enabled
	return style
}

// RendererOptions maps the configuration onto renderer builder options. The config must be valid.
//
// Returns:
//   - []renderer.RendererBuilderOption: the options for renderer.NewRenderer
func (c *Config) RendererOptions() []renderer.RendererBuilderOption {
	mode, _ := c.PresentMode()
	options := []renderer.RendererBuilderOption{
		renderer.WithSize(c.Window.Width, c.Window.Height),
		renderer.WithPresentMode(mode),
		renderer.WithMSAA(renderer.MSAASampleCount(c.Renderer.MSAA)),
		renderer.WithGlowRadius(c.Renderer.GlowRadius),
		renderer.WithShowBoundingBox(c.Renderer.BoundingBox),
		renderer.WithAmbientOcclusionOnReload(c.AmbientOcclusion.Enabled && !c.AmbientOcclusion.Async),
	}
	if c.Renderer.Workers > 0 {
		options = append(options, renderer.WithWorkers(c.Renderer.Workers))
	}
	return options
}

func rgba(v []float32) ([4]float32, error) {
	switch len(v) {
	case 3:
		return [4]float32{v[0], v[1], v[2], 1}, nil
	case 4:
		return [4]float32{v[0], v[1], v[2], v[3]}, nil
	default:
		return [4]float32{}, fmt.Errorf("want 3 or 4 components, got %d", len(v))
	}
}
