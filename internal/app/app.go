// Package app holds the setup shared by the viewer and picture commands.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/config"
	"github.com/Carmen-Shannon/oxy-crystal/engine/loader"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// InstallLogger points the engine logger at a text handler on w, filtering at the configured level.
// The returned level can be changed later, for example when the configuration file is reloaded.
//
// Parameters:
//   - w: where log lines go, usually os.Stderr
//   - cfg: a valid configuration
//
// Returns:
//   - *slog.LevelVar: the live level of the installed handler
func InstallLogger(w io.Writer, cfg *config.Config) *slog.LevelVar {
	level := &slog.LevelVar{}
	if l, err := cfg.LogLevel(); err == nil {
		level.Set(l)
	}
	common.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return level
}

// LoadSource reads every structure file into its own scene, in argument order.
//
// Parameters:
//   - l: the loader to read with
//   - cfg: supplies the render quality and background
//   - paths: the structure files
//
// Returns:
//   - scene.EditableSource: one scene per file
//   - error: error if no file is given or one fails to load
func LoadSource(l loader.Loader, cfg *config.Config, paths ...string) (scene.EditableSource, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no structure files given")
	}
	quality, err := cfg.RenderQuality()
	if err != nil {
		return nil, err
	}
	background, err := cfg.Background()
	if err != nil {
		return nil, err
	}

	src := scene.NewSource(scene.WithRenderQuality(quality), scene.WithBackground(background))
	for _, path := range paths {
		s, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		src.AddScene(s)
	}
	return src, nil
}

// StructureAt returns the structure with the given flat index, numbering structures scene by scene
// in order the way picking IDs do.
//
// Parameters:
//   - src: the scene description
//   - flat: the flat structure index
//
// Returns:
//   - scene.Structure: the structure, or nil if flat is out of range
func StructureAt(src scene.Source, flat int) scene.Structure {
	if flat < 0 {
		return nil
	}
	for i := range src.NumberOfScenes() {
		structures := src.StructuresForScene(i)
		if flat < len(structures) {
			return structures[flat]
		}
		flat -= len(structures)
	}
	return nil
}

// Structures returns every structure of src, scene by scene.
func Structures(src scene.Source) []scene.Structure {
	var out []scene.Structure
	for i := range src.NumberOfScenes() {
		out = append(out, src.StructuresForScene(i)...)
	}
	return out
}
