package occlusion

import (
	"math"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// DirectionSet is a list of light orientations with their integration weights.
// The weights of a set sum to 4.
type DirectionSet struct {
	Rotations []mgl32.Quat
	Weights   []float32
}

// Len returns the number of directions.
func (d DirectionSet) Len() int {
	return len(d.Rotations)
}

const (
	cellVertexWeight = 4 * 0.93426 / 360
	cellCenterWeight = 4 * 1.32870 / 360
	highSetSize      = 1992
)

var (
	lowOnce  sync.Once
	lowSet   DirectionSet
	highOnce sync.Once
	highSet  DirectionSet
)

// Directions returns the direction set used at a render quality. Picture quality uses the
// 1992-direction set; every other quality uses the 360-direction set.
//
// Parameters:
//   - quality: the render quality
//
// Returns:
//   - DirectionSet: the shared, read-only set
func Directions(quality scene.RenderQuality) DirectionSet {
	if quality == scene.QualityPicture {
		highOnce.Do(func() { highSet = superFibonacci(highSetSize) })
		return highSet
	}
	lowOnce.Do(func() {
		vertices := hecatonicosachoronVertices()
		centers := hexacosichoronVertices()
		lowSet = DirectionSet{
			Rotations: append(vertices, centers...),
			Weights:   make([]float32, 0, len(vertices)+len(centers)),
		}
		for range vertices {
			lowSet.Weights = append(lowSet.Weights, cellVertexWeight)
		}
		for range centers {
			lowSet.Weights = append(lowSet.Weights, cellCenterWeight)
		}
	})
	return lowSet
}

// superFibonacci spreads n rotations evenly over SO(3) with a super-Fibonacci spiral.
func superFibonacci(n int) DirectionSet {
	const psi = 1.533751168755204288118041
	phi := math.Sqrt2
	set := DirectionSet{Rotations: make([]mgl32.Quat, n), Weights: make([]float32, n)}
	for i := range n {
		s := float64(i) + 0.5
		r := math.Sqrt(s / float64(n))
		R := math.Sqrt(1 - s/float64(n))
		alpha := 2 * math.Pi * s / phi
		beta := 2 * math.Pi * s / psi
		set.Rotations[i] = mgl32.Quat{
			W: float32(R * math.Cos(beta)),
			V: mgl32.Vec3{float32(r * math.Sin(alpha)), float32(r * math.Cos(alpha)), float32(R * math.Sin(beta))},
		}
		set.Weights[i] = 4 / float32(n)
	}
	return set
}

// hecatonicosachoronVertices returns the 600 vertices of the 120-cell as unit quaternions,
// one per antipodal pair.
func hecatonicosachoronVertices() []mgl32.Quat {
	p := math.Phi
	ip := 1 / p
	s5 := math.Sqrt(5)
	var points [][4]float64
	points = append(points, signedPermutations([4]float64{0, 0, 2, 2}, false)...)
	points = append(points, signedPermutations([4]float64{1, 1, 1, s5}, false)...)
	points = append(points, signedPermutations([4]float64{ip * ip, p, p, p}, false)...)
	points = append(points, signedPermutations([4]float64{ip, ip, ip, p * p}, false)...)
	points = append(points, signedPermutations([4]float64{0, ip * ip, 1, p * p}, true)...)
	points = append(points, signedPermutations([4]float64{0, ip, p, s5}, true)...)
	points = append(points, signedPermutations([4]float64{ip, 1, p, 2}, true)...)
	return antipodalClasses(points)
}

// hexacosichoronVertices returns the 120 vertices of the 600-cell as unit quaternions,
// one per antipodal pair.
func hexacosichoronVertices() []mgl32.Quat {
	p := math.Phi
	var points [][4]float64
	points = append(points, signedPermutations([4]float64{1, 0, 0, 0}, false)...)
	points = append(points, signedPermutations([4]float64{0.5, 0.5, 0.5, 0.5}, false)...)
	points = append(points, signedPermutations([4]float64{p / 2, 0.5, 1 / (2 * p), 0}, true)...)
	return antipodalClasses(points)
}

// signedPermutations returns the distinct points obtained by permuting v (all permutations, or
// only even ones) and flipping the sign of every non-zero coordinate.
func signedPermutations(v [4]float64, evenOnly bool) [][4]float64 {
	seen := map[[4]int64]bool{}
	var out [][4]float64
	for _, perm := range permutations4() {
		if evenOnly && !perm.even {
			continue
		}
		var base [4]float64
		for i, j := range perm.index {
			base[i] = v[j]
		}
		for signs := range 16 {
			p := base
			for i := range 4 {
				if signs&(1<<i) != 0 {
					p[i] = -p[i]
				}
			}
			k := quantize(p)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, p)
		}
	}
	return out
}

type permutation struct {
	index [4]int
	even  bool
}

func permutations4() []permutation {
	var out []permutation
	var rec func(prefix []int, used [4]bool)
	rec = func(prefix []int, used [4]bool) {
		if len(prefix) == 4 {
			var p permutation
			copy(p.index[:], prefix)
			inversions := 0
			for i := range 4 {
				for j := i + 1; j < 4; j++ {
					if p.index[i] > p.index[j] {
						inversions++
					}
				}
			}
			p.even = inversions%2 == 0
			out = append(out, p)
			return
		}
		for i := range 4 {
			if used[i] {
				continue
			}
			used[i] = true
			rec(append(prefix, i), used)
			used[i] = false
		}
	}
	rec(nil, [4]bool{})
	return out
}

func quantize(p [4]float64) [4]int64 {
	var k [4]int64
	for i, x := range p {
		k[i] = int64(math.Round(x * 1e6))
	}
	return k
}

// antipodalClasses normalizes the points to unit length, keeps one point of every q, -q pair
// (the one whose first non-zero coordinate is positive) and returns them in a stable order.
func antipodalClasses(points [][4]float64) []mgl32.Quat {
	seen := map[[4]int64]bool{}
	var kept [][4]float64
	for _, p := range points {
		n := math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2] + p[3]*p[3])
		for i := range p {
			p[i] /= n
		}
		for _, x := range p {
			if math.Abs(x) < 1e-9 {
				continue
			}
			if x < 0 {
				for i := range p {
					p[i] = -p[i]
				}
			}
			break
		}
		k := quantize(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, p)
	}
	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		for c := range 4 {
			if a[c] != b[c] {
				return a[c] < b[c]
			}
		}
		return false
	})

	out := make([]mgl32.Quat, len(kept))
	for i, p := range kept {
		out[i] = mgl32.Quat{W: float32(p[0]), V: mgl32.Vec3{float32(p[1]), float32(p[2]), float32(p[3])}}
	}
	return out
}
