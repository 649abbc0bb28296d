// Package loader reads structure files into scene structures and caches them by name.
package loader

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// LoaderBackendType identifies the structure file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeXYZ selects the XYZ / extended-XYZ loader backend.
	BackendTypeXYZ LoaderBackendType = iota
)

// loader caches structures by file path or reader name. IDs are handed out in load order.
type loader struct {
	mu sync.RWMutex

	structureCache map[string]scene.EditableStructure
	nextID         scene.StructureID

	backend       loaderBackend
	pool          worker.DynamicWorkerPool
	workers       int
	bondTolerance float32
	style         scene.Style
}

// Loader defines the public-facing interface for loading and caching structures.
// It abstracts the file format behind a generic backend, derives bonds from covalent radii
// and manages a cache of previously loaded structures.
type Loader interface {
	// Load reads a structure file and caches the result by path.
	// If the structure is already cached, the cached instance is returned.
	// The backend is selected based on the file extension (.xyz → XYZ backend).
	//
	// Parameters:
	//   - path: the file path to the structure file
	//
	// Returns:
	//   - scene.EditableStructure: the loaded and cached structure
	//   - error: error if loading fails
	Load(path string) (scene.EditableStructure, error)

	// LoadReader reads a structure from a stream with the loader's backend and caches it by name.
	//
	// Parameters:
	//   - name: the cache key for the loaded structure
	//   - r: the reader providing the file contents
	//
	// Returns:
	//   - scene.EditableStructure: the loaded structure
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader) (scene.EditableStructure, error)

	// Get retrieves a cached structure by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - scene.EditableStructure: the cached structure or nil
	Get(name string) scene.EditableStructure

	// Structures returns a copy of the structure cache.
	//
	// Returns:
	//   - map[string]scene.EditableStructure: all cached structures keyed by name
	Structures() map[string]scene.EditableStructure

	// Release stops the bond detection workers.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a loader. The backend type only decides how LoadReader parses; Load picks a
// backend from the file extension.
//
// Parameters:
//   - backendType: the format LoadReader expects
//   - options: functional options such as WithWorkers and WithBondTolerance
//
// Returns:
//   - Loader: the loader, whose Release stops its bond workers
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		structureCache: make(map[string]scene.EditableStructure),
		nextID:         1,
		workers:        max(runtime.NumCPU()-1, 1),
		bondTolerance:  DefaultBondTolerance,
		style:          scene.DefaultStyle(),
	}

	switch backendType {
	case BackendTypeXYZ:
		l.backend = newXYZLoaderBackend()
	}

	for _, option := range options {
		option(l)
	}
	l.pool = worker.NewDynamicWorkerPool(l.workers, 256, time.Second)
	return l
}

func (l *loader) Load(path string) (scene.EditableStructure, error) {
	if s := l.Get(path); s != nil {
		return s, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	defer f.Close()

	s, err := l.load(backend, f)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}
	return l.store(path, s), nil
}

func (l *loader) LoadReader(name string, r io.Reader) (scene.EditableStructure, error) {
	if s := l.Get(name); s != nil {
		return s, nil
	}
	s, err := l.load(l.backend, r)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}
	return l.store(name, s), nil
}

func (l *loader) Get(name string) scene.EditableStructure {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.structureCache[name]
}

func (l *loader) Structures() map[string]scene.EditableStructure {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.structureCache)
}

func (l *loader) Release() {
	l.pool.Stop()
}

// resolveBackend picks the backend for a file extension.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xyz", ".extxyz":
		return newXYZLoaderBackend(), nil
	default:
		return nil, fmt.Errorf("loader: unsupported file extension %q", ext)
	}
}

// load parses a stream and builds the structure, assigning the next free ID.
func (l *loader) load(backend loaderBackend, r io.Reader) (scene.EditableStructure, error) {
	if backend == nil {
		return nil, fmt.Errorf("loader: no backend configured")
	}
	start := time.Now()
	parsed, err := backend.Parse(r)
	if err != nil {
		return nil, err
	}
	bonds := detectBonds(parsed.atoms, l.bondTolerance, l.pool)

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.mu.Unlock()

	s := build(id, parsed, bonds, l.style)
	common.Logger().Debug("structure loaded", "id", id, "title", parsed.title,
		"atoms", len(parsed.atoms), "bonds", len(bonds), "elapsed", time.Since(start))
	return s, nil
}

// store caches s under name unless another goroutine got there first.
func (l *loader) store(name string, s scene.EditableStructure) scene.EditableStructure {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.structureCache[name]; ok {
		return cached
	}
	l.structureCache[name] = s
	return s
}

func build(id scene.StructureID, parsed *parsedStructure, bonds []scene.Bond, style scene.Style) scene.EditableStructure {
	options := []scene.StructureBuilderOption{
		scene.WithAtoms(parsed.atoms...),
		scene.WithStyle(style),
	}
	if len(bonds) > 0 {
		options = append(options, scene.WithBonds(bonds...))
	}
	if parsed.unitCell != nil {
		options = append(options, scene.WithUnitCell(*parsed.unitCell))
	}
	return scene.NewStructure(id, options...)
}

// LoadXYZ reads one XYZ structure without caching. Bonds join atoms closer than the sum of their
// covalent radii plus DefaultBondTolerance.
//
// Parameters:
//   - r: the reader providing the XYZ text
//   - id: the ID of the new structure
//
// Returns:
//   - scene.EditableStructure: the structure
//   - error: error if the text is malformed
func LoadXYZ(r io.Reader, id scene.StructureID) (scene.EditableStructure, error) {
	parsed, err := newXYZLoaderBackend().Parse(r)
	if err != nil {
		return nil, err
	}
	pool := worker.NewDynamicWorkerPool(max(runtime.NumCPU()-1, 1), 256, time.Second)
	defer pool.Stop()
	return build(id, parsed, detectBonds(parsed.atoms, DefaultBondTolerance, pool), scene.DefaultStyle()), nil
}
