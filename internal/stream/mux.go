package stream

import (
	"container/heap"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"telemux/internal/acada"
	"telemux/internal/container"
	"telemux/internal/domain"
)

// muxEntry is one pending record. order is the discovery order of the
// source, assigned once at open; it breaks ties between equal event ids so
// the merge is deterministic.
type muxEntry[R Record] struct {
	rec   R
	order int
	src   *Chunked[R]
}

type muxHeap[R Record] []muxEntry[R]

func (h muxHeap[R]) Len() int { return len(h) }
func (h muxHeap[R]) Less(i, j int) bool {
	if h[i].rec.EventID() != h[j].rec.EventID() {
		return h[i].rec.EventID() < h[j].rec.EventID()
	}
	return h[i].order < h[j].order
}
func (h muxHeap[R]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *muxHeap[R]) Push(x any)   { *h = append(*h, x.(muxEntry[R])) }
func (h *muxHeap[R]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Mux merges the chunked streams of all parallel data sources of one
// element into a single stream ordered by (event id, discovery order). The
// heap holds at most one pending record per live source. If every source is
// individually non-decreasing in event id, the merged output is
// non-decreasing; this is not validated.
type Mux[R Record] struct {
	log     *zap.Logger
	entries muxHeap[R]
	sources []*Chunked[R]
	live    int
	header  container.Header
	closed  bool
}

// OpenTelescopeMux discovers and merges the parallel data sources of one
// telescope, starting from any one source's first chunk path.
func OpenTelescopeMux(path string, opts Options, log *zap.Logger, prov Recorder) (*Mux[*container.TelescopeEvent], error) {
	return openMux(path, opts, domain.RoleTelescope, telescopeOpener, log, prov)
}

// OpenTriggerMux opens the subarray trigger stream the same way.
func OpenTriggerMux(path string, opts Options, log *zap.Logger, prov Recorder) (*Mux[*container.SubarrayEvent], error) {
	return openMux(path, opts, domain.RoleTrigger, triggerOpener, log, prov)
}

func openMux[R Record](path string, opts Options, role domain.StreamRole, open chunkOpener[R], log *zap.Logger, prov Recorder) (*Mux[R], error) {
	if log == nil {
		log = zap.NewNop()
	}
	info, err := acada.Parse(path, opts.Convention)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)

	sources := []string{info.DataSource}
	if opts.DiscoverSources {
		sources, err = discoverSources(dir, info, opts)
		if err != nil {
			return nil, err
		}
		log.Debug("discovered parallel data sources",
			zap.String("dir", dir),
			zap.Strings("data_sources", sources))
	}

	m := &Mux[R]{log: log}
	for order, ds := range sources {
		srcInfo := info
		srcInfo.DataSource = ds
		c, err := openChunked(dir, srcInfo, opts, role, open, log, prov)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("open data source %s: %w", ds, err)
		}
		m.sources = append(m.sources, c)
		if order == 0 {
			m.header = c.Header()
		}

		rec, ok, err := c.Next()
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		if !ok {
			// Source exhausted before yielding a record; drop it.
			_ = c.Close()
			continue
		}
		m.live++
		m.entries = append(m.entries, muxEntry[R]{rec: rec, order: order, src: c})
	}
	heap.Init(&m.entries)
	return m, nil
}

// discoverSources globs for sibling files of the same run with the data
// source (and optionally timestamp) wildcarded and returns the distinct
// data source ids in sorted order.
func discoverSources(dir string, info acada.FileNameInfo, opts Options) ([]string, error) {
	pattern := info
	pattern.DataSource = acada.Wildcard
	if opts.IgnoreTimestamp {
		pattern.Timestamp = acada.Wildcard
	}
	name, err := acada.Format(pattern, opts.Convention)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", name, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoSources, name, dir)
	}

	seen := map[string]bool{}
	var sources []string
	for _, match := range matches {
		matchInfo, err := acada.Parse(match, opts.Convention)
		if err != nil {
			return nil, err
		}
		if !seen[matchInfo.DataSource] {
			seen[matchInfo.DataSource] = true
			sources = append(sources, matchInfo.DataSource)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// Next pops the minimum pending record and refills from the source that
// produced it. ok=false once every source is exhausted.
func (m *Mux[R]) Next() (R, bool, error) {
	var zero R
	if m.closed || len(m.entries) == 0 {
		return zero, false, nil
	}
	entry := heap.Pop(&m.entries).(muxEntry[R])

	refill, ok, err := entry.src.Next()
	if err != nil {
		return zero, false, err
	}
	if ok {
		heap.Push(&m.entries, muxEntry[R]{rec: refill, order: entry.order, src: entry.src})
	} else {
		m.live--
		_ = entry.src.Close()
	}
	return entry.rec, true, nil
}

// OpenSourceCount reports the number of live sources. The correlator uses
// it as the per-event lookahead bound.
func (m *Mux[R]) OpenSourceCount() int { return m.live }

// Header returns the run metadata captured from the first source opened.
func (m *Mux[R]) Header() container.Header { return m.header }

// Close releases every source. Idempotent; Next reports exhaustion after.
func (m *Mux[R]) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	for _, src := range m.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.entries = nil
	m.live = 0
	return errors.Join(errs...)
}
