// Package stream turns numbered sequences of chunk containers into logical
// unbounded record streams and merges parallel per-source streams into one
// ordered stream.
package stream

import (
	"errors"

	"telemux/internal/acada"
	"telemux/internal/domain"
)

// Record is anything ordered and correlated by event id.
type Record interface {
	EventID() uint64
}

// DuplicatePolicy decides which file wins when a rollover glob matches more
// than one candidate for the same chunk index. The race is a known upstream
// timing bug: two producers can momentarily create the same chunk boundary,
// and the lexicographically last file carries the current run.
type DuplicatePolicy string

const (
	DuplicateTakeLast DuplicatePolicy = "last"
	DuplicateReject   DuplicatePolicy = "reject"
)

// Options controls chunk rollover and parallel source discovery.
type Options struct {
	// Convention names the file naming scheme of the source paths.
	Convention acada.Convention

	// Rollover opens chunk N+1 when chunk N is exhausted. Without it a
	// stream ends at its first chunk boundary.
	Rollover bool

	// DiscoverSources globs for sibling data sources of the given first
	// chunk and merges them. Multiplexer only.
	DiscoverSources bool

	// IgnoreTimestamp wildcards the timestamp field in discovery and
	// rollover patterns, tolerating clock skew between independently
	// clocked producers.
	IgnoreTimestamp bool

	// Duplicates selects the resolution policy for the duplicate first
	// chunk race. Defaults to DuplicateTakeLast.
	Duplicates DuplicatePolicy
}

func (o Options) duplicates() DuplicatePolicy {
	if o.Duplicates == "" {
		return DuplicateTakeLast
	}
	return o.Duplicates
}

// ErrDuplicateChunk is returned under DuplicateReject when a rollover glob
// matches more than one file.
var ErrDuplicateChunk = errors.New("multiple files for one chunk index")

// ErrNoSources is returned when source discovery matches no files.
var ErrNoSources = errors.New("no files matching discovery pattern")

// Recorder receives one call per input file opened. Implemented by the
// provenance store; a nil Recorder disables recording.
type Recorder interface {
	RecordInput(path string, role domain.StreamRole, sbID, obsID uint64) error
}
