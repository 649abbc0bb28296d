package loader

import (
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithWorkers sets how many goroutines check atom pairs for bonds.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - LoaderBuilderOption: a function that applies the workers option to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = max(n, 1)
	}
}

// WithBondTolerance sets the distance in Å added to the sum of two covalent radii when deriving bonds.
// Defaults to DefaultBondTolerance.
func WithBondTolerance(tolerance float32) LoaderBuilderOption {
	return func(l *loader) {
		l.bondTolerance = tolerance
	}
}

// WithStyle sets the style of every loaded structure.
func WithStyle(style scene.Style) LoaderBuilderOption {
	return func(l *loader) {
		l.style = style
	}
}

// WithStructure is an option builder that pre-populates the structure cache.
//
// Parameters:
//   - key: the cache key for the structure
//   - s: the structure to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the structure option to a loader
func WithStructure(key string, s scene.EditableStructure) LoaderBuilderOption {
	return func(l *loader) {
		l.structureCache[key] = s
		if s.ID() >= l.nextID {
			l.nextID = s.ID() + 1
		}
	}
}
