// Command crystal-picture renders structure files offscreen and writes a picture.
//
// Usage:
//
//	crystal-picture [-config crystal.toml] [-o out.tiff] [-width 1920] [-height 1080] [-quality rgb16] file.xyz...
//
// It uses the software backend unless the configuration selects wgpu, and bakes ambient occlusion
// before drawing when it is enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/config"
	"github.com/Carmen-Shannon/oxy-crystal/engine/camera"
	"github.com/Carmen-Shannon/oxy-crystal/engine/export"
	"github.com/Carmen-Shannon/oxy-crystal/engine/loader"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-crystal/internal/app"
)

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	output := flag.String("o", "", "output file; overrides [picture].output")
	width := flag.Int("width", 0, "picture width; overrides [picture].width")
	height := flag.Int("height", 0, "picture height; overrides [picture].height")
	quality := flag.String("quality", "", "rgb16, rgb8, cmyk16 or cmyk8; overrides [picture].image_quality")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err == nil {
		err = applyFlags(cfg, *output, *width, *height, *quality)
	}
	if err == nil {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = run(ctx, cfg, flag.Args())
		stop()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "crystal-picture:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.Renderer.Backend = "software"
		return cfg, nil
	}
	return config.Load(path)
}

// applyFlags lets command line flags override the [picture] section.
func applyFlags(cfg *config.Config, output string, width, height int, quality string) error {
	if output != "" {
		cfg.Picture.Output = output
	}
	if width > 0 {
		cfg.Picture.Width = width
	}
	if height > 0 {
		cfg.Picture.Height = height
	}
	if quality != "" {
		cfg.Picture.ImageQuality = quality
	}
	return cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config, paths []string) error {
	app.InstallLogger(os.Stderr, cfg)
	start := time.Now()

	l := loader.NewLoader(loader.BackendTypeXYZ, loader.WithStyle(cfg.StructureStyle()))
	defer l.Release()
	src, err := app.LoadSource(l, cfg, paths...)
	if err != nil {
		return err
	}

	backend, _ := cfg.BackendType()
	cam := camera.NewCamera(
		camera.WithViewport(cfg.Picture.Width, cfg.Picture.Height),
		camera.WithController(camera.NewCameraController()),
	)
	if ctrl := cam.Controller(); ctrl != nil {
		ctrl.FitBounds(src.RenderBoundingBox(), cam.Fov())
	}
	options := append(cfg.RendererOptions(),
		renderer.WithSize(cfg.Picture.Width, cfg.Picture.Height),
		renderer.WithCamera(cam),
		renderer.WithAmbientOcclusionOnReload(false),
	)
	r := renderer.NewRenderer(backend, nil, options...)
	defer r.Release()

	if err := r.Reload(src); err != nil {
		return err
	}
	if cfg.AmbientOcclusion.Enabled {
		if err := r.BakeAmbientOcclusion(ctx); err != nil {
			return fmt.Errorf("ambient occlusion: %w", err)
		}
	}

	iq, _ := cfg.ImageQuality()
	rq, _ := cfg.PictureRenderQuality()
	pic, err := r.RenderPicture(cfg.Picture.Width, cfg.Picture.Height, nil, iq, rq)
	if err != nil {
		return err
	}

	out := cfg.Picture.Output
	if filepath.Ext(out) == "" {
		out += export.Extension(iq)
	}
	if err := export.Save(pic, out); err != nil {
		return err
	}
	common.Logger().Info("picture saved", "path", out, "backend", backend, "width", pic.Width(), "height", pic.Height(),
		"quality", iq, "bakes", r.AmbientOcclusionBakes(), "elapsed", time.Since(start))
	return nil
}
