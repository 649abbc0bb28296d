package occlusion

import "math"

// MaxTextureSize caps the occlusion texture edge length.
const MaxTextureSize = 16384

// ShadowMapResolution is the edge length of the depth map rendered per direction.
const ShadowMapResolution = 2048

// TextureSize returns the edge length of the occlusion texture for a structure with atomCount atoms.
//
// Parameters:
//   - atomCount: number of atoms in the structure
//
// Returns:
//   - int: the texture edge length in texels
func TextureSize(atomCount int) int {
	var size int
	switch {
	case atomCount <= 64:
		size = 256
	case atomCount <= 256:
		size = 512
	case atomCount <= 1024:
		size = 1024
	case atomCount <= 65536:
		size = 2048
	case atomCount <= 524288:
		size = 4096
	default:
		size = 8192
	}
	return min(size, MaxTextureSize)
}

// PatchLayout splits the occlusion texture into a square grid with one patch per atom.
// Atom k owns the patch at column k%patchCount and row k/patchCount.
//
// Parameters:
//   - atomCount: number of atoms in the structure
//   - textureSize: the texture edge length
//
// Returns:
//   - int: patches per row
//   - int: patch edge length in texels
func PatchLayout(atomCount, textureSize int) (int, int) {
	patchCount := int(math.Floor(math.Sqrt(float64(max(atomCount, 0))))) + 1
	return patchCount, textureSize / patchCount
}
