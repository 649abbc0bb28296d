package occlusion

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightSum(set DirectionSet) float64 {
	var sum float64
	for _, w := range set.Weights {
		sum += float64(w)
	}
	return sum
}

func TestDirectionSetsConserveWeight(t *testing.T) {
	for _, q := range []scene.RenderQuality{scene.QualityLow, scene.QualityMedium, scene.QualityHigh, scene.QualityPicture} {
		set := Directions(q)
		require.Equal(t, len(set.Rotations), len(set.Weights))
		assert.InDelta(t, 4.0, weightSum(set), 1e-3, "quality %s", q)
	}
}

func TestQualityToSetMapping(t *testing.T) {
	assert.Equal(t, 360, Directions(scene.QualityLow).Len())
	assert.Equal(t, 360, Directions(scene.QualityMedium).Len())
	assert.Equal(t, 360, Directions(scene.QualityHigh).Len())
	assert.Equal(t, 1992, Directions(scene.QualityPicture).Len())
}

func TestPolytopeVertexCounts(t *testing.T) {
	assert.Len(t, hecatonicosachoronVertices(), 300)
	assert.Len(t, hexacosichoronVertices(), 60)

	set := Directions(scene.QualityLow)
	assert.InDelta(t, cellVertexWeight, set.Weights[0], 1e-7)
	assert.InDelta(t, cellCenterWeight, set.Weights[359], 1e-7)
}

func TestDirectionsAreDistinctUnitRotations(t *testing.T) {
	for _, q := range []scene.RenderQuality{scene.QualityLow, scene.QualityPicture} {
		set := Directions(q)
		seen := map[[4]int64]bool{}
		for _, r := range set.Rotations {
			assert.InDelta(t, 1, r.Len(), 1e-5)
			key := canonical(r)
			assert.False(t, seen[key], "duplicate rotation %v", r)
			seen[key] = true
		}
	}
}

// canonical maps q and -q to the same key.
func canonical(q mgl32.Quat) [4]int64 {
	v := [4]float64{float64(q.W), float64(q.V[0]), float64(q.V[1]), float64(q.V[2])}
	for _, x := range v {
		if math.Abs(x) < 1e-6 {
			continue
		}
		if x < 0 {
			for i := range v {
				v[i] = -v[i]
			}
		}
		break
	}
	var k [4]int64
	for i, x := range v {
		k[i] = int64(math.Round(x * 1e4))
	}
	return k
}

func TestEvenPermutations(t *testing.T) {
	even := 0
	perms := permutations4()
	for _, p := range perms {
		if p.even {
			even++
		}
	}
	assert.Len(t, perms, 24)
	assert.Equal(t, 12, even)
}
