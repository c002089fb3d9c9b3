package stream

import (
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"telemux/internal/acada"
	"telemux/internal/container"
	"telemux/internal/domain"
)

// chunkSource is one open container table, role-erased.
type chunkSource[R Record] interface {
	Next() (R, bool, error)
	Close() error
}

type chunkOpener[R Record] func(path string) (chunkSource[R], container.Header, error)

// Chunked presents one data source's numbered chunk files as a single
// logical stream. The run-level header is captured from the first chunk
// only; later chunks of the same run are assumed to repeat it.
type Chunked[R Record] struct {
	log  *zap.Logger
	dir  string
	info acada.FileNameInfo
	opts Options
	role domain.StreamRole
	open chunkOpener[R]
	prov Recorder

	src            chunkSource[R]
	header         container.Header
	headerCaptured bool
	chunk          int
	exhausted      bool
	closed         bool
}

// OpenTelescopeChunks opens the chunked stream of a single telescope data
// source, starting at the given chunk file.
func OpenTelescopeChunks(path string, opts Options, log *zap.Logger, prov Recorder) (*Chunked[*container.TelescopeEvent], error) {
	info, err := acada.Parse(path, opts.Convention)
	if err != nil {
		return nil, err
	}
	return openChunked(filepath.Dir(path), info, opts, domain.RoleTelescope, telescopeOpener, log, prov)
}

// OpenTriggerChunks opens the chunked stream of a single trigger data
// source, starting at the given chunk file.
func OpenTriggerChunks(path string, opts Options, log *zap.Logger, prov Recorder) (*Chunked[*container.SubarrayEvent], error) {
	info, err := acada.Parse(path, opts.Convention)
	if err != nil {
		return nil, err
	}
	return openChunked(filepath.Dir(path), info, opts, domain.RoleTrigger, triggerOpener, log, prov)
}

func telescopeOpener(path string) (chunkSource[*container.TelescopeEvent], container.Header, error) {
	r, err := container.OpenTelescope(path)
	if err != nil {
		return nil, container.Header{}, err
	}
	return r, r.Header(), nil
}

func triggerOpener(path string) (chunkSource[*container.SubarrayEvent], container.Header, error) {
	r, err := container.OpenTrigger(path)
	if err != nil {
		return nil, container.Header{}, err
	}
	return r, r.Header(), nil
}

func openChunked[R Record](dir string, info acada.FileNameInfo, opts Options, role domain.StreamRole, open chunkOpener[R], log *zap.Logger, prov Recorder) (*Chunked[R], error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Chunked[R]{
		log:  log,
		dir:  dir,
		info: info,
		opts: opts,
		role: role,
		open: open,
		prov: prov,
		// loadNextChunk advances before globbing, so start one below the
		// requested first chunk.
		chunk: info.Chunk - 1,
	}
	ok, err := c.loadNextChunk()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no file found for %s source %s chunk %d in %s", role, info.DataSource, info.Chunk, dir)
	}
	return c, nil
}

// loadNextChunk closes the current container and opens the chunk after it.
// ok=false means no candidate file exists, the normal end-of-run condition.
func (c *Chunked[R]) loadNextChunk() (bool, error) {
	if c.src != nil {
		_ = c.src.Close()
		c.src = nil
	}
	c.chunk++

	pattern := c.info
	pattern.Chunk = c.chunk
	if c.opts.IgnoreTimestamp {
		pattern.Timestamp = acada.Wildcard
	}
	name, err := acada.Format(pattern, c.opts.Convention)
	if err != nil {
		return false, err
	}
	matches, err := filepath.Glob(filepath.Join(c.dir, name))
	if err != nil {
		return false, fmt.Errorf("glob %s: %w", name, err)
	}
	if len(matches) == 0 {
		return false, nil
	}
	if len(matches) > 1 && c.opts.duplicates() == DuplicateReject {
		return false, fmt.Errorf("%w: %s chunk %d has %d candidates", ErrDuplicateChunk, c.info.DataSource, c.chunk, len(matches))
	}
	sort.Strings(matches)
	path := matches[len(matches)-1]

	c.log.Debug("opening chunk",
		zap.String("path", path),
		zap.String("data_source", c.info.DataSource),
		zap.Int("chunk", c.chunk))

	src, header, err := c.open(path)
	if err != nil {
		return false, err
	}
	c.src = src
	if !c.headerCaptured {
		c.header = header
		c.headerCaptured = true
	}
	if c.prov != nil {
		var sbID, obsID uint64
		if c.info.SBID != nil {
			sbID = *c.info.SBID
		}
		if c.info.OBSID != nil {
			obsID = *c.info.OBSID
		}
		if err := c.prov.RecordInput(path, c.role, sbID, obsID); err != nil {
			return false, fmt.Errorf("record provenance for %s: %w", path, err)
		}
	}
	return true, nil
}

// Next returns the next record of this source. ok=false signals permanent
// exhaustion (end of run); err only structural faults.
func (c *Chunked[R]) Next() (R, bool, error) {
	var zero R
	if c.closed || c.exhausted {
		return zero, false, nil
	}
	for {
		rec, ok, err := c.src.Next()
		if err != nil {
			return zero, false, err
		}
		if ok {
			return rec, true, nil
		}
		if !c.opts.Rollover {
			c.exhaust()
			return zero, false, nil
		}
		ok, err = c.loadNextChunk()
		if err != nil {
			return zero, false, err
		}
		if !ok {
			c.exhaust()
			return zero, false, nil
		}
	}
}

func (c *Chunked[R]) exhaust() {
	c.exhausted = true
	if c.src != nil {
		_ = c.src.Close()
		c.src = nil
	}
}

// Header returns the run-level metadata captured from the first chunk.
func (c *Chunked[R]) Header() container.Header { return c.header }

// DataSource returns the data source identity of this stream.
func (c *Chunked[R]) DataSource() string { return c.info.DataSource }

// Close releases the open container handle. Idempotent.
func (c *Chunked[R]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.src != nil {
		err := c.src.Close()
		c.src = nil
		return err
	}
	return nil
}
