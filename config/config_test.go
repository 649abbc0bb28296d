package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	backend, err := cfg.BackendType()
	require.NoError(t, err)
	assert.Equal(t, renderer.BackendTypeWGPU, backend)

	q, err := cfg.RenderQuality()
	require.NoError(t, err)
	assert.Equal(t, scene.QualityHigh, q)

	pq, err := cfg.PictureRenderQuality()
	require.NoError(t, err)
	assert.Equal(t, scene.QualityPicture, pq)
	assert.NotEmpty(t, cfg.RendererOptions())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[window]
width = 640

[renderer]
backend = "software"
msaa = 1
render_quality = "low"

[renderer.background]
type = "radial"
color1 = [1.0, 0.5, 0.25]

[ambient_occlusion]
enabled = false

[picture]
image_quality = "cmyk8"
render_quality = "medium"

[log]
level = "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.Equal(t, "oxy-crystal", cfg.Window.Title)

	backend, _ := cfg.BackendType()
	assert.Equal(t, renderer.BackendTypeSoftware, backend)
	q, _ := cfg.RenderQuality()
	assert.Equal(t, scene.QualityLow, q)

	bg, err := cfg.Background()
	require.NoError(t, err)
	assert.Equal(t, scene.BackgroundRadialGradient, bg.Type)
	assert.Equal(t, [4]float32{1, 0.5, 0.25, 1}, bg.Color1)
	assert.Equal(t, [4]float32{0.25, 0.25, 0.3, 1}, bg.Color2)

	assert.False(t, cfg.StructureStyle().AmbientOcclusion)
	iq, _ := cfg.ImageQuality()
	assert.Equal(t, scene.ImageCMYK8, iq)
	pq, _ := cfg.PictureRenderQuality()
	assert.Equal(t, scene.QualityMedium, pq)
	level, _ := cfg.LogLevel()
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "[renderer]\nshadows = true\n"},
		{"unknown section", "[audio]\nvolume = 1\n"},
		{"bad backend", "[renderer]\nbackend = \"vulkan\"\n"},
		{"bad msaa", "[renderer]\nmsaa = 2\n"},
		{"bad present mode", "[renderer]\npresent_mode = \"triple\"\n"},
		{"bad quality", "[renderer]\nrender_quality = \"ultra\"\n"},
		{"bad background", "[renderer.background]\ntype = \"stars\"\n"},
		{"short color", "[renderer.background]\ncolor1 = [1.0, 0.0]\n"},
		{"negative workers", "[renderer]\nworkers = -1\n"},
		{"empty window", "[window]\nwidth = 0\n"},
		{"bad image quality", "[picture]\nimage_quality = \"jpeg\"\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"not toml", "[window\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Renderer.MSAA = 3
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "msaa")
	assert.Contains(t, err.Error(), "log")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crystal.toml")
	require.NoError(t, os.WriteFile(path, []byte("[picture]\nwidth = 300\nheight = 200\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Picture.Width)
	assert.Equal(t, 200, cfg.Picture.Height)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crystal.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nrender_quality = \"low\"\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	type result struct {
		cfg *Config
		err error
	}
	changes := make(chan result, 8)
	require.NoError(t, Watch(ctx, path, func(cfg *Config, err error) {
		changes <- result{cfg, err}
	}))

	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nrender_quality = \"picture\"\n"), 0o644))
	select {
	case r := <-changes:
		require.NoError(t, r.err)
		q, _ := r.cfg.RenderQuality()
		assert.Equal(t, scene.QualityPicture, q)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nrender_quality = \"ultra\"\n"), 0o644))
	select {
	case r := <-changes:
		assert.Error(t, r.err)
		assert.Nil(t, r.cfg)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after invalid write")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent", "crystal.toml"), func(*Config, error) {})
	assert.Error(t, err)
}
