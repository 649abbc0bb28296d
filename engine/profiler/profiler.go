package profiler

import (
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-crystal/common"
)

// passStats accumulates the time spent in one render pass over a reporting interval.
type passStats struct {
	total time.Duration
	max   time.Duration
	count int
}

// memWindow is what the runtime's memory statistics say about one reporting interval.
type memWindow struct {
	heapMB, sysMB float64
	churnMB       float64 // allocated during the interval, freed or not
	gcs           uint32
	lastPause     time.Duration
	worstPause    time.Duration
}

// Profiler counts frames and render pass timings and logs them through common.Logger once per
// interval, together with heap and GC figures.
type Profiler struct {
	mu sync.Mutex

	interval    time.Duration
	windowStart time.Time
	frames      int

	mem       runtime.MemStats
	gcSeen    uint32
	allocSeen uint64
	passes    map[string]*passStats
	passOrder []string
}

// NewProfiler creates a profiler that reports every second.
//
// Returns:
//   - *Profiler: the new profiler
func NewProfiler() *Profiler {
	return &Profiler{
		interval:    time.Second,
		windowStart: time.Now(),
		passes:      make(map[string]*passStats),
	}
}

// SetInterval changes how often Tick reports. Values <= 0 are ignored.
func (p *Profiler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
}

// RecordPass adds one execution of a render pass. Its signature matches pass.TraceFunc, so it can be
// handed to renderer.WithTrace directly.
//
// Parameters:
//   - name: the pass name
//   - elapsed: how long the pass took
func (p *Profiler) RecordPass(name string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.passes[name]
	if !ok {
		s = &passStats{}
		p.passes[name] = s
		p.passOrder = append(p.passOrder, name)
	}
	s.total += elapsed
	s.max = max(s.max, elapsed)
	s.count++
}

// PassAverage returns the mean duration of a pass over the current interval, or 0 if it has not run.
func (p *Profiler) PassAverage(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.passes[name]
	if !ok || s.count == 0 {
		return 0
	}
	return s.total / time.Duration(s.count)
}

// Tick counts a frame. Once the interval has passed it logs the frame rate, memory figures and the
// mean and worst time of every pass recorded since the last report, then starts a new interval.
//
// Returns:
//   - bool: whether this call logged
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames++
	now := time.Now()
	span := now.Sub(p.windowStart)
	if span < p.interval {
		return false
	}

	m := p.sampleMemory()
	common.Logger().Info("profiler",
		"fps", float64(p.frames)/span.Seconds(),
		"heapMB", m.heapMB,
		"allocRateMBps", m.churnMB/span.Seconds(),
		"gc", m.gcs,
		"lastPause", m.lastPause,
		"maxPause", m.worstPause,
		"sysMB", m.sysMB,
	)
	if attrs := p.passAttrs(); len(attrs) > 0 {
		common.Logger().Info("profiler passes", attrs...)
	}

	p.frames = 0
	p.windowStart = now
	for _, s := range p.passes {
		*s = passStats{}
	}
	return true
}

// sampleMemory reads the runtime statistics and advances the GC and allocation watermarks.
// Caller must hold the mutex.
func (p *Profiler) sampleMemory() memWindow {
	const mb = 1 << 20
	runtime.ReadMemStats(&p.mem)
	m := memWindow{
		heapMB:  float64(p.mem.Alloc) / mb,
		sysMB:   float64(p.mem.Sys) / mb,
		churnMB: float64(p.mem.TotalAlloc-p.allocSeen) / mb,
		gcs:     p.mem.NumGC,
	}
	// PauseNs holds the most recent 256 pauses, indexed by GC number modulo 256
	ring := uint32(len(p.mem.PauseNs))
	if m.gcs > 0 {
		m.lastPause = time.Duration(p.mem.PauseNs[(m.gcs-1)%ring])
	}
	for gc := max(p.gcSeen, m.gcs-min(m.gcs, ring)); gc < m.gcs; gc++ {
		m.worstPause = max(m.worstPause, time.Duration(p.mem.PauseNs[gc%ring]))
	}
	p.gcSeen = m.gcs
	p.allocSeen = p.mem.TotalAlloc
	return m
}

// passAttrs groups the per-pass timings by pass name in sorted order. Caller must hold the mutex.
func (p *Profiler) passAttrs() []any {
	var attrs []any
	for _, name := range slices.Sorted(slices.Values(p.passOrder)) {
		if s := p.passes[name]; s.count > 0 {
			attrs = append(attrs, slog.Group(name, "avg", s.total/time.Duration(s.count), "max", s.max))
		}
	}
	return attrs
}
