package loader

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// DefaultBondTolerance is added to the sum of two covalent radii to get the largest bonded distance, in Å.
const DefaultBondTolerance = 0.4

// minBondDistance rejects overlapping atoms, which are duplicates rather than bonds.
const minBondDistance = 0.1

// bondChunk is the number of first atoms one bond detection task checks.
const bondChunk = 64

// detectBonds connects every pair of atoms closer than r1+r2+tolerance. Pairs are checked in row
// chunks on the pool and the result is ordered by (Atom1, Atom2) regardless of scheduling.
//
// Parameters:
//   - atoms: the atoms, with Radius holding the covalent radius
//   - tolerance: the distance added to r1+r2
//   - pool: the worker pool the chunks run on
//
// Returns:
//   - []scene.Bond: the single bonds found
func detectBonds(atoms []scene.Atom, tolerance float32, pool worker.DynamicWorkerPool) []scene.Bond {
	n := len(atoms)
	if n < 2 {
		return nil
	}

	chunks := make([][]scene.Bond, (n+bondChunk-1)/bondChunk)
	var wg sync.WaitGroup
	for c := range chunks {
		lo, hi := c*bondChunk, min((c+1)*bondChunk, n)
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: c,
			Do: func() (any, error) {
				defer wg.Done()
				chunks[c] = bondsFrom(atoms, lo, hi, tolerance)
				return nil, nil
			},
		})
	}
	wg.Wait()

	var bonds []scene.Bond
	for _, chunk := range chunks {
		bonds = append(bonds, chunk...)
	}
	return bonds
}

// bondsFrom checks the pairs (i, j) with lo <= i < hi and j > i.
func bondsFrom(atoms []scene.Atom, lo, hi int, tolerance float32) []scene.Bond {
	var out []scene.Bond
	for i := lo; i < hi; i++ {
		a := atoms[i]
		for j := i + 1; j < len(atoms); j++ {
			b := atoms[j]
			limit := a.Radius + b.Radius + tolerance
			d := a.Position.Sub(b.Position)
			dist2 := d.Dot(d)
			if dist2 < limit*limit && dist2 > minBondDistance*minBondDistance {
				out = append(out, scene.Bond{Atom1: i, Atom2: j, Order: scene.BondSingle})
			}
		}
	}
	return out
}
