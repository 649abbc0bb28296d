// Package resource owns the per-structure GPU instance buffers and keeps them in sync with the scene source.
package resource

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-crystal/engine/renderer/indexer"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
)

// Allocator creates GPU instance buffers. Renderer backends implement it.
type Allocator interface {
	// CreateInstanceBuffer uploads data into a new vertex/storage buffer.
	//
	// Parameters:
	//   - label: debug label
	//   - data: tightly packed records
	//   - count: number of records in data
	//
	// Returns:
	//   - gpu.Buffer: the created buffer
	//   - error: error if the allocation fails
	CreateInstanceBuffer(label string, data []byte, count int) (gpu.Buffer, error)
}

type noBuffer struct{}

func (noBuffer) Label() string { return "none" }
func (noBuffer) Len() int      { return 0 }
func (noBuffer) Count() int    { return 0 }
func (noBuffer) Release()      {}

// NoBuffer fills every category slot that has no records. Passes skip it.
var NoBuffer gpu.Buffer = noBuffer{}

// Entry holds the instance buffers of one structure, indexed by Category.
type Entry struct {
	buffers [CategoryCount]gpu.Buffer
	spans   [CategoryCount][]Span
}

func emptyEntry() Entry {
	var e Entry
	for i := range e.buffers {
		e.buffers[i] = NoBuffer
	}
	return e
}

// Buffer returns the buffer of category c.
//
// Parameters:
//   - c: the category
//
// Returns:
//   - gpu.Buffer: the buffer, or nil
//   - bool: false when the category has no records
func (e Entry) Buffer(c Category) (gpu.Buffer, bool) {
	if c < 0 || c >= CategoryCount {
		return nil, false
	}
	b := e.buffers[c]
	if b == nil || b == NoBuffer {
		return nil, false
	}
	return b, true
}

// Spans returns the per-shape instance ranges of a primitive category.
func (e Entry) Spans(c Category) []Span {
	if c < 0 || c >= CategoryCount {
		return nil
	}
	return e.spans[c]
}

func (e Entry) release() {
	for _, b := range e.buffers {
		if b != nil {
			b.Release()
		}
	}
}

// EntryLayout describes which categories of an entry hold buffers and how large they are.
type EntryLayout struct {
	Flat    int
	Present [CategoryCount]bool
	Lengths [CategoryCount]int
}

type arena struct {
	entries []Entry
	global  Entry
}

// Table is the flat arena of resource entries indexed by flat structure index.
// Readers access the current arena lock-free; Rebuild builds a new arena off to the side
// and swaps it in atomically before releasing the old one.
type Table struct {
	mu *sync.Mutex

	current atomic.Pointer[arena]
	pool    worker.DynamicWorkerPool
	glyphs  GlyphLayout
	workers int
}

// NewTable creates an empty resource table.
//
// Parameters:
//   - options: variadic list of TableBuilderOption functions
//
// Returns:
//   - *Table: the created table
func NewTable(options ...TableBuilderOption) *Table {
	t := &Table{
		mu:      &sync.Mutex{},
		workers: max(runtime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(t)
	}
	t.pool = worker.NewDynamicWorkerPool(t.workers, 256, time.Second)
	t.current.Store(&arena{global: emptyEntry()})
	return t
}

type job struct {
	flat     int
	category Category
}

// Rebuild re-extracts every structure's instance records and swaps in a new arena.
// Record encoding runs on the worker pool; buffer creation runs on the calling goroutine.
// On allocation failure the previous arena stays live and the partial arena is released.
//
// Parameters:
//   - src: the scene source, used for the render bounding box
//   - idx: the uniform table that defines the flat numbering
//   - alloc: the buffer allocator
//
// Returns:
//   - error: error if a buffer could not be created
func (t *Table) Rebuild(src scene.Source, idx *indexer.Table, alloc Allocator) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	n := idx.Len()
	results := make([][CategoryCount]records, n)

	var wg sync.WaitGroup
	taskID := 0
	idx.Each(func(flat, _, _ int, s scene.Structure) {
		if !s.Visible() {
			return
		}
		for c := range CategoryCount {
			j := job{flat: flat, category: c}
			wg.Add(1)
			t.pool.SubmitTask(worker.Task{
				ID: taskID,
				Do: func() (any, error) {
					defer wg.Done()
					results[j.flat][j.category] = extract(s, j.category, t.glyphs)
					return nil, nil
				},
			})
			taskID++
		}
	})
	wg.Wait()

	next := &arena{entries: make([]Entry, n), global: emptyEntry()}
	fail := func(err error) error {
		for _, e := range next.entries {
			e.release()
		}
		next.global.release()
		return err
	}

	for flat := range results {
		e := emptyEntry()
		for c := range CategoryCount {
			r := results[flat][c]
			if r.count == 0 {
				continue
			}
			buf, err := alloc.CreateInstanceBuffer(fmt.Sprintf("structure %d %s", flat, c), r.data, r.count)
			if err != nil {
				next.entries[flat] = e
				return fail(fmt.Errorf("failed to create %s buffer for structure %d: %w", c, flat, err))
			}
			e.buffers[c] = buf
			e.spans[c] = r.spans
		}
		next.entries[flat] = e
	}

	spheres, cylinders := boundingBoxRecords(src.RenderBoundingBox())
	for c, r := range []records{CategoryUnitCellSpheres: spheres, CategoryUnitCellCylinders: cylinders} {
		if r.count == 0 {
			continue
		}
		c := Category(c)
		buf, err := alloc.CreateInstanceBuffer("bounding box "+c.String(), r.data, r.count)
		if err != nil {
			return fail(fmt.Errorf("failed to create bounding box buffer: %w", err))
		}
		next.global.buffers[c] = buf
	}

	prev := t.current.Swap(next)
	if prev != nil {
		for _, e := range prev.entries {
			e.release()
		}
		prev.global.release()
	}

	common.Logger().Debug("resource table rebuilt", "structures", n, "elapsed", time.Since(start))
	return nil
}

// Entry returns the entry of a flat index. Out of range indices yield an empty entry.
//
// Parameters:
//   - flat: the flat structure index
//
// Returns:
//   - Entry: the entry
func (t *Table) Entry(flat int) Entry {
	a := t.current.Load()
	if flat < 0 || flat >= len(a.entries) {
		return emptyEntry()
	}
	return a.entries[flat]
}

// Global returns the entry holding scene-wide geometry: the bounding box corner spheres
// (CategoryUnitCellSpheres) and edge cylinders (CategoryUnitCellCylinders).
func (t *Table) Global() Entry {
	return t.current.Load().global
}

// Len returns the number of entries in the current arena.
func (t *Table) Len() int {
	return len(t.current.Load().entries)
}

// Layout reports the shape of every entry, followed by the global entry with Flat -1.
//
// Returns:
//   - []EntryLayout: one layout per entry
func (t *Table) Layout() []EntryLayout {
	a := t.current.Load()
	out := make([]EntryLayout, 0, len(a.entries)+1)
	describe := func(flat int, e Entry) EntryLayout {
		l := EntryLayout{Flat: flat}
		for c := range CategoryCount {
			if b, ok := e.Buffer(c); ok {
				l.Present[c] = true
				l.Lengths[c] = b.Len()
			}
		}
		return l
	}
	for flat, e := range a.entries {
		out = append(out, describe(flat, e))
	}
	return append(out, describe(-1, a.global))
}

// Release frees every buffer and stops the encoding workers. The table is empty afterwards.
func (t *Table) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.current.Swap(&arena{global: emptyEntry()})
	for _, e := range prev.entries {
		e.release()
	}
	prev.global.release()
	t.pool.Stop()
}
