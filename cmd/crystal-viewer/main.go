// Command crystal-viewer shows structure files in an interactive window.
//
// Usage:
//
//	crystal-viewer [-config crystal.toml] [-profile] file.xyz...
//
// Every file becomes its own scene. Left drag orbits, middle drag pans, the wheel zooms and a left click
// selects the atom under the cursor.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/config"
	"github.com/Carmen-Shannon/oxy-crystal/engine"
	"github.com/Carmen-Shannon/oxy-crystal/engine/camera"
	"github.com/Carmen-Shannon/oxy-crystal/engine/export"
	"github.com/Carmen-Shannon/oxy-crystal/engine/loader"
	"github.com/Carmen-Shannon/oxy-crystal/engine/profiler"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/picking"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/Carmen-Shannon/oxy-crystal/engine/window"
	"github.com/Carmen-Shannon/oxy-crystal/internal/app"
)

func main() {
	configPath := flag.String("config", "", "TOML configuration file, reloaded when it changes")
	profile := flag.Bool("profile", false, "log frame rate, memory and pass timings every second; F toggles it")
	flag.Parse()

	if err := run(*configPath, *profile, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "crystal-viewer:", err)
		os.Exit(1)
	}
}

// viewer holds the state the input handlers share.
type viewer struct {
	mu       sync.Mutex // guards cfg, which the config watcher replaces
	cfg      *config.Config
	level    *slog.LevelVar
	eng      engine.Engine
	src      scene.EditableSource
	renderer renderer.Renderer
	camera   camera.Camera
}

func run(configPath string, profile bool, paths []string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	level := app.InstallLogger(os.Stderr, cfg)

	if backend, _ := cfg.BackendType(); backend != renderer.BackendTypeWGPU {
		return fmt.Errorf("the viewer needs the wgpu backend, the configuration asks for %s", backend)
	}

	l := loader.NewLoader(loader.BackendTypeXYZ, loader.WithStyle(cfg.StructureStyle()))
	defer l.Release()
	src, err := app.LoadSource(l, cfg, paths...)
	if err != nil {
		return err
	}

	win := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)

	cam := camera.NewCamera(
		camera.WithViewport(win.Width(), win.Height()),
		camera.WithController(camera.NewCameraController()),
	)
	prof := profiler.NewProfiler()
	options := append(cfg.RendererOptions(),
		renderer.WithSize(win.Width(), win.Height()),
		renderer.WithCamera(cam),
		renderer.WithTrace(prof.RecordPass),
	)
	r := renderer.NewRenderer(renderer.BackendTypeWGPU, win, options...)
	defer r.Release()

	eng := engine.NewEngine(r,
		engine.WithWindow(win),
		engine.WithProfiler(prof),
		engine.WithProfiling(profile),
		engine.WithAsyncAmbientOcclusion(cfg.AmbientOcclusion.Enabled && cfg.AmbientOcclusion.Async),
	)

	v := &viewer{cfg: cfg, level: level, eng: eng, src: src, renderer: r, camera: cam}
	v.resetCamera()
	if err := eng.SetSource(src); err != nil {
		return err
	}
	win.SetKeyDownCallback(v.handleKey)
	eng.SetPickCallback(v.handlePick)

	if configPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := config.Watch(ctx, configPath, v.applyConfig); err != nil {
			common.Logger().Warn("config changes will not be applied", "error", err)
		}
	}

	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║  oxy-crystal viewer                                  ║")
	fmt.Println("╠══════════════════════════════════════════════════════╣")
	fmt.Println("║  Left drag=Orbit  Middle drag=Pan  Scroll=Zoom       ║")
	fmt.Println("║  Click=Select atom  1-4=Quality  A=Toggle occlusion  ║")
	fmt.Println("║  I=Rebake occlusion  B=Background  O=Ortho  R=Reset  ║")
	fmt.Println("║  Arrows=Orbit  F=Frame stats  P=Save picture         ║")
	fmt.Println("║  Esc=Quit                                            ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")

	common.Logger().Info("viewer started", "files", len(paths), "scenes", src.NumberOfScenes())
	eng.Run()
	return nil
}

// resetCamera frames every visible structure.
func (v *viewer) resetCamera() {
	if ctrl := v.camera.Controller(); ctrl != nil {
		ctrl.SetAngles(0, 0)
		ctrl.FitBounds(v.src.RenderBoundingBox(), v.camera.Fov())
	}
}

func (v *viewer) handleKey(keyCode uint32) {
	switch keyCode {
	case common.Key1:
		v.renderer.SetRenderQuality(scene.QualityLow)
	case common.Key2:
		v.renderer.SetRenderQuality(scene.QualityMedium)
	case common.Key3:
		v.renderer.SetRenderQuality(scene.QualityHigh)
	case common.Key4:
		v.renderer.SetRenderQuality(scene.QualityPicture)
	case common.KeyA:
		v.toggleAmbientOcclusion()
	case common.KeyI:
		v.renderer.InvalidateAmbientOcclusionAll()
		v.reload()
	case common.KeyB:
		b := v.src.Background()
		b.Type = (b.Type + 1) % (scene.BackgroundRadialGradient + 1)
		v.src.SetBackground(b)
		v.reload()
	case common.KeyO:
		if v.camera.FrustumType() == camera.FrustumPerspective {
			v.camera.SetFrustumType(camera.FrustumOrthographic)
		} else {
			v.camera.SetFrustumType(camera.FrustumPerspective)
		}
	case common.KeyR:
		v.resetCamera()
	case common.KeyF:
		v.eng.SetProfiling(!v.eng.Profiling())
	case common.KeyP:
		go v.savePicture()
	case common.KeyLeft, common.KeyRight, common.KeyUp, common.KeyDown:
		v.orbit(keyCode)
	}
}

// orbit steps the camera around its target; held arrow keys repeat.
func (v *viewer) orbit(keyCode uint32) {
	ctrl := v.camera.Controller()
	if ctrl == nil {
		return
	}
	switch keyCode {
	case common.KeyLeft:
		ctrl.OrbitLeft()
	case common.KeyRight:
		ctrl.OrbitRight()
	case common.KeyUp:
		ctrl.OrbitUp()
	case common.KeyDown:
		ctrl.OrbitDown()
	}
}

func (v *viewer) toggleAmbientOcclusion() {
	for _, s := range app.Structures(v.src) {
		es, ok := s.(scene.EditableStructure)
		if !ok {
			continue
		}
		style := es.Style()
		style.AmbientOcclusion = !style.AmbientOcclusion
		es.SetStyle(style)
	}
	v.reload()
}

func (v *viewer) reload() {
	if err := v.eng.Reload(); err != nil {
		common.Logger().Warn("reload failed", "error", err)
	}
}

// handlePick selects the clicked atom, or clears the selection of every structure on a miss.
func (v *viewer) handlePick(id *picking.ID, depth *float32) {
	if id == nil {
		for _, s := range app.Structures(v.src) {
			if es, ok := s.(scene.EditableStructure); ok {
				es.Select()
			}
		}
		v.reload()
		return
	}

	s, ok := app.StructureAt(v.src, int(id.StructureFlatIndex)).(scene.EditableStructure)
	if !ok {
		return
	}
	if id.Kind != picking.KindAtom {
		if bonds := s.Bonds(); int(id.LocalIndex) < len(bonds) {
			b := bonds[id.LocalIndex]
			common.Logger().Info("picked bond", "kind", id.Kind, "scene", id.SceneIndex, "structure", s.ID(),
				"bond", id.LocalIndex, "atom1", b.Atom1, "atom2", b.Atom2, "order", b.Order)
		}
		return
	}
	atoms := s.Atoms()
	local := int(id.LocalIndex)
	if local >= len(atoms) {
		return
	}
	atom := atoms[local]
	attrs := []any{"scene", id.SceneIndex, "structure", s.ID(), "atom", id.LocalIndex,
		"element", atom.Element, "name", atom.Name, "position", atom.Position}
	if depth != nil {
		attrs = append(attrs, "depth", *depth)
	}
	common.Logger().Info("picked atom", attrs...)

	s.Select(local)
	v.reload()
}

// savePicture renders the configured picture and writes it to the configured output path.
func (v *viewer) savePicture() {
	v.mu.Lock()
	cfg := v.cfg
	v.mu.Unlock()

	iq, _ := cfg.ImageQuality()
	rq, _ := cfg.PictureRenderQuality()
	pic, err := v.renderer.RenderPicture(cfg.Picture.Width, cfg.Picture.Height, nil, iq, rq)
	if err != nil {
		common.Logger().Warn("picture failed", "error", err)
		return
	}
	out := cfg.Picture.Output
	if filepath.Ext(out) == "" {
		out += export.Extension(iq)
	}
	if err := export.Save(pic, out); err != nil {
		common.Logger().Warn("picture failed", "error", err)
		return
	}
	common.Logger().Info("picture saved", "path", out, "width", pic.Width(), "height", pic.Height(), "quality", iq)
}

// applyConfig takes over the settings that can change while the viewer runs.
func (v *viewer) applyConfig(cfg *config.Config, err error) {
	if err != nil {
		common.Logger().Warn("config not reloaded", "error", err)
		return
	}
	if level, err := cfg.LogLevel(); err == nil {
		v.level.Set(level)
	}
	if q, err := cfg.RenderQuality(); err == nil {
		v.renderer.SetRenderQuality(q)
	}
	if b, err := cfg.Background(); err == nil {
		v.src.SetBackground(b)
	}
	if mode, err := cfg.PresentMode(); err == nil {
		v.renderer.SetPresentMode(mode)
	}
	v.mu.Lock()
	v.cfg = cfg
	v.mu.Unlock()
	v.reload()
}
