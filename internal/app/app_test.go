package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/config"
	"github.com/Carmen-Shannon/oxy-crystal/engine/loader"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallLogger(t *testing.T) {
	t.Cleanup(func() { common.SetLogger(nil) })
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Log.Level = "warn"
	level := InstallLogger(&buf, cfg)

	common.Logger().Info("hidden")
	common.Logger().Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	level.Set(-4)
	common.Logger().Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestLoadSourceOneScenePerFile(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.xyz", "b.xyz"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("2\nH2\nH 0 0 0\nH 0 0 0.74\n"), 0o644))
		paths = append(paths, path)
	}
	l := loader.NewLoader(loader.BackendTypeXYZ, loader.WithWorkers(1))
	t.Cleanup(l.Release)

	cfg := config.Default()
	cfg.Renderer.RenderQuality = "medium"
	src, err := LoadSource(l, cfg, paths...)
	require.NoError(t, err)

	assert.Equal(t, 2, src.NumberOfScenes())
	assert.Equal(t, scene.QualityMedium, src.RenderQuality())
	assert.Len(t, Structures(src), 2)
	assert.Same(t, l.Get(paths[1]), StructureAt(src, 1))
	assert.Nil(t, StructureAt(src, 2))
	assert.Nil(t, StructureAt(src, -1))

	_, err = LoadSource(l, cfg)
	assert.Error(t, err)
	_, err = LoadSource(l, cfg, filepath.Join(dir, "missing.xyz"))
	assert.Error(t, err)
}
