// Package occlusion bakes per-atom ambient occlusion into octahedral texture patches and caches
// the result per structure.
package occlusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoAtoms is returned when a structure without atoms is baked.
var ErrNoAtoms = errors.New("occlusion: structure has no atoms")

// perturbationAngle bounds the random rotation applied to every direction, in radians.
const perturbationAngle = 0.5 * 10 * math.Pi / 180

// Backend is the GPU surface the baker drives.
type Backend interface {
	// BeginOcclusionBake clears the occlusion texture of a structure and prepares a depth target.
	//
	// Parameters:
	//   - flat: the flat structure index owning the texture
	//   - textureSize: occlusion texture edge length
	//   - shadowResolution: requested depth map edge length
	//
	// Returns:
	//   - error: error if the targets cannot be created
	BeginOcclusionBake(flat, textureSize, shadowResolution int) error

	// DrawShadowDepth renders the atoms of every draw into a freshly cleared depth map. A failed pass
	// is held until EndOcclusionBake and later passes of the bake are skipped.
	DrawShadowDepth(shadow gpu.ShadowUniforms, draws []gpu.Draw)

	// AccumulateOcclusion adds shadow.Weight to every texel of the target's patches that is lit in the depth map.
	AccumulateOcclusion(shadow gpu.ShadowUniforms, d gpu.Draw)

	// EndOcclusionBake blocks until the GPU finishes and returns the R16Float texels of the texture,
	// or the first error of the bake's passes.
	EndOcclusionBake() ([]byte, error)

	// UploadAmbientOcclusion writes cached texels into the live occlusion texture of a structure.
	UploadAmbientOcclusion(flat, textureSize int, texels []byte) error
}

// CacheEntry is a baked occlusion texture.
type CacheEntry struct {
	Texels      []byte
	TextureSize int
	AtomCount   int
}

// Inputs are the tables of the currently loaded scene.
type Inputs struct {
	Index       *indexer.Table
	Resources   *resource.Table
	BoundingBox scene.Bounds
}

// Baker owns the ambient occlusion cache. At most one bake runs at a time.
type Baker struct {
	mu *sync.Mutex

	backend          Backend
	inputs           Inputs
	cache            map[scene.StructureID]CacheEntry
	bakes            int
	shadowResolution int
}

// NewBaker creates a baker with an empty cache.
//
// Parameters:
//   - backend: the GPU backend
//   - options: variadic list of BakerBuilderOption functions
//
// Returns:
//   - *Baker: the created baker
func NewBaker(backend Backend, options ...BakerBuilderOption) *Baker {
	b := &Baker{
		mu:               &sync.Mutex{},
		backend:          backend,
		cache:            make(map[scene.StructureID]CacheEntry),
		shadowResolution: ShadowMapResolution,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// SetInputs replaces the tables used by later bakes. The renderer calls it after every reload.
func (b *Baker) SetInputs(in Inputs) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs = in
}

// GetOrBake returns the cached texture of s, or bakes it when absent. Either way the texels end up in
// the live occlusion texture of flat.
//
// Parameters:
//   - s: the structure
//   - flat: the flat index of s in the current index table
//   - quality: selects the direction set
//
// Returns:
//   - CacheEntry: the cached or newly baked texture
//   - error: ErrNoAtoms, or a wrapped backend error
func (b *Baker) GetOrBake(s scene.Structure, flat int, quality scene.RenderQuality) (CacheEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.cache[s.ID()]; ok {
		if n := s.AtomCount(); n != entry.AtomCount {
			common.Logger().Warn("ambient occlusion cache entry is stale",
				"structure", s.ID(), "cachedAtoms", entry.AtomCount, "atoms", n)
		}
		if err := b.backend.UploadAmbientOcclusion(flat, entry.TextureSize, entry.Texels); err != nil {
			return CacheEntry{}, fmt.Errorf("failed to upload ambient occlusion for structure %d: %w", s.ID(), err)
		}
		return entry, nil
	}

	entry, err := b.bake(s, flat, quality)
	if err != nil {
		return CacheEntry{}, err
	}
	b.cache[s.ID()] = entry
	return entry, nil
}

func (b *Baker) bake(s scene.Structure, flat int, quality scene.RenderQuality) (CacheEntry, error) {
	n := s.AtomCount()
	if n == 0 {
		return CacheEntry{}, ErrNoAtoms
	}
	idx, res := b.inputs.Index, b.inputs.Resources
	if idx == nil || res == nil {
		return CacheEntry{}, fmt.Errorf("occlusion: no scene tables for structure %d", s.ID())
	}
	target, ok := res.Entry(flat).Buffer(resource.CategoryAtoms)
	if !ok {
		return CacheEntry{}, ErrNoAtoms
	}

	start := time.Now()
	size := TextureSize(n)
	patchCount, patchSize := PatchLayout(n, size)
	if err := b.backend.BeginOcclusionBake(flat, size, b.shadowResolution); err != nil {
		return CacheEntry{}, fmt.Errorf("failed to begin ambient occlusion bake: %w", err)
	}

	casters := b.casters(flat)
	targetDraw := gpu.Draw{
		Mesh:          gpu.MeshImpostor,
		Instances:     target,
		FlatIndex:     flat,
		UniformOffset: idx.UniformOffset(flat),
	}
	targetDraw.SceneIndex, _, _ = idx.Location(flat)

	directions := Directions(quality)
	frames := ShadowFrames(b.inputs.BoundingBox, directions)
	for _, shadow := range frames {
		shadow.PatchCount = float32(patchCount)
		shadow.PatchSize = float32(patchSize)
		shadow.InvTexture = 1 / float32(size)

		b.backend.DrawShadowDepth(shadow, casters)
		b.backend.AccumulateOcclusion(shadow, targetDraw)
	}

	texels, err := b.backend.EndOcclusionBake()
	if err != nil {
		return CacheEntry{}, fmt.Errorf("failed to read back ambient occlusion: %w", err)
	}
	if want := size * size * 2; len(texels) != want {
		return CacheEntry{}, fmt.Errorf("ambient occlusion readback has %d bytes, want %d", len(texels), want)
	}
	b.bakes++

	common.Logger().Info("ambient occlusion baked",
		"structure", s.ID(), "directions", directions.Len(), "textureSize", size, "elapsed", time.Since(start))
	return CacheEntry{Texels: texels, TextureSize: size, AtomCount: n}, nil
}

// casters returns the atom draws of every visible structure in the same scene as flat.
func (b *Baker) casters(flat int) []gpu.Draw {
	idx, res := b.inputs.Index, b.inputs.Resources
	sceneIndex, _, ok := idx.Location(flat)
	if !ok {
		return nil
	}
	var draws []gpu.Draw
	for _, f := range idx.SceneStructures(sceneIndex) {
		s := idx.Structure(f)
		if s == nil || !s.Visible() {
			continue
		}
		buf, ok := res.Entry(f).Buffer(resource.CategoryAtoms)
		if !ok {
			continue
		}
		draws = append(draws, gpu.Draw{
			Mesh:          gpu.MeshSphere,
			Instances:     buf,
			FlatIndex:     f,
			SceneIndex:    sceneIndex,
			UniformOffset: idx.UniformOffset(f),
		})
	}
	return draws
}

// ShadowFrames builds the light framing of every direction. The random perturbation restarts from
// seed 0 on every call so repeated bakes of the same scene are identical.
//
// Parameters:
//   - box: the render bounding box
//   - directions: the direction set
//
// Returns:
//   - []gpu.ShadowUniforms: one record per direction with the weight filled in
func ShadowFrames(box scene.Bounds, directions DirectionSet) []gpu.ShadowUniforms {
	center := box.Center()
	radius := box.Radius()
	if radius <= 0 {
		radius = 1
	}
	eye := center.Add(mgl32.Vec3{0, 0, radius})

	extent := box.Extent()
	half := radius
	if extent[1] != 0 {
		if aspect := math32.Abs(extent[0]) / math32.Abs(extent[1]); aspect < 1 && aspect > 0 {
			half = radius / aspect
		}
	}
	projection := common.Ortho(-half, half, -half, half, 1, 1000)
	view := common.LookAt(eye, center, mgl32.Vec3{0, 1, 0})

	rng := rand.New(rand.NewSource(0))
	out := make([]gpu.ShadowUniforms, directions.Len())
	for k, dir := range directions.Rotations {
		q := common.SmallRandomQuaternion(rng, perturbationAngle).Mul(dir)
		out[k] = gpu.ShadowUniforms{
			Projection: projection,
			View:       view,
			Rotation:   common.RotationAroundPoint(q, center, mgl32.Vec3{}),
			Weight:     directions.Weights[k],
		}
	}
	return out
}

// BakeAll bakes or uploads every visible structure that has ambient occlusion enabled and atoms, in flat order.
// The context is checked between structures.
//
// Parameters:
//   - ctx: cancels the remaining structures
//   - quality: selects the direction set
//
// Returns:
//   - error: the context error or the first bake failure
func (b *Baker) BakeAll(ctx context.Context, quality scene.RenderQuality) error {
	b.mu.Lock()
	idx := b.inputs.Index
	b.mu.Unlock()
	if idx == nil {
		return nil
	}

	for flat := range idx.Len() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := idx.Structure(flat)
		if !Wanted(s) {
			continue
		}
		if _, err := b.GetOrBake(s, flat, quality); err != nil {
			return err
		}
	}
	return nil
}

// Wanted reports whether a structure takes part in ambient occlusion.
func Wanted(s scene.Structure) bool {
	return s != nil && s.Visible() && s.Style().AmbientOcclusion && s.AtomCount() > 0
}

// Cached reports whether the structure with the given ID has a cache entry.
func (b *Baker) Cached(id scene.StructureID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.cache[id]
	return ok
}

// Invalidate drops the cache entries of the given structures.
func (b *Baker) Invalidate(ids ...scene.StructureID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.cache, id)
	}
}

// InvalidateAll empties the cache.
func (b *Baker) InvalidateAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.cache)
}

// BakeCount returns the number of bakes performed since creation. Cache hits do not count.
func (b *Baker) BakeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bakes
}

// Hook fills the ambient occlusion patch layout of a structure uniform record.
// Pass it to indexer.Rebuild with indexer.WithUniformHook.
func Hook(flat int, s scene.Structure, u *indexer.StructureUniforms) {
	n := s.AtomCount()
	if n == 0 {
		return
	}
	size := TextureSize(n)
	patchCount, patchSize := PatchLayout(n, size)
	u.AOPatchCount = int32(patchCount)
	u.AOPatchSize = float32(patchSize)
	u.AOInverseTextureSize = 1 / float32(size)
}
