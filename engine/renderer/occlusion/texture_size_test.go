package occlusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextureSize(t *testing.T) {
	tests := []struct {
		atoms int
		want  int
	}{
		{0, 256},
		{1, 256},
		{64, 256},
		{65, 512},
		{256, 512},
		{257, 1024},
		{1024, 1024},
		{1025, 2048},
		{65536, 2048},
		{65537, 4096},
		{524288, 4096},
		{524289, 8192},
		{50_000_000, 8192},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TextureSize(tt.atoms), "atoms=%d", tt.atoms)
		assert.LessOrEqual(t, TextureSize(tt.atoms), MaxTextureSize)
	}
}

func TestPatchLayout(t *testing.T) {
	tests := []struct {
		atoms, size         int
		wantCount, wantSize int
	}{
		{1, 256, 2, 128},
		{3, 256, 2, 128},
		{4, 256, 3, 85},
		{64, 256, 9, 28},
		{1000, 1024, 32, 32},
		{65536, 2048, 257, 7},
	}
	for _, tt := range tests {
		count, size := PatchLayout(tt.atoms, tt.size)
		assert.Equal(t, tt.wantCount, count, "atoms=%d", tt.atoms)
		assert.Equal(t, tt.wantSize, size, "atoms=%d", tt.atoms)
		assert.Greater(t, count*count, tt.atoms-1, "every atom needs a patch")
	}
}
