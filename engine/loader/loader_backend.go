package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// parsedStructure is the format-independent result of a loader backend.
type parsedStructure struct {
	title    string
	atoms    []scene.Atom
	unitCell *[16]float32
}

// loaderBackend defines the generic interface for reading structures from streams.
// Concrete implementations (e.g., xyzLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Parse reads one structure. Atom radii are covalent radii; bonds are derived by the loader.
	//
	// Parameters:
	//   - r: the reader providing the file contents
	//
	// Returns:
	//   - *parsedStructure: the atoms and optional unit cell
	//   - error: error if the stream is malformed
	Parse(r io.Reader) (*parsedStructure, error)
}
