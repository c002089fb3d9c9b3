// Package correlate joins the subarray trigger stream with the per-telescope
// event streams, yielding one fully correlated event per trigger record.
package correlate

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"telemux/internal/container"
	"telemux/internal/domain"
	"telemux/internal/instrument"
	"telemux/internal/stream"
)

// ErrUnconfiguredTelescope is returned in strict mode when a trigger
// references a telescope id no stream was opened for.
var ErrUnconfiguredTelescope = errors.New("trigger references unconfigured telescope")

// ErrLookaheadExceeded is returned in strict mode when a telescope stream
// is desynchronized beyond the lookahead bound.
var ErrLookaheadExceeded = errors.New("no matching record within lookahead bound")

// Options configures correlation behaviour on top of the stream options
// shared by the trigger and telescope multiplexers.
type Options struct {
	Stream stream.Options

	// Strict turns missing correlated data beyond the lookahead bound and
	// unconfigured telescope references into hard errors instead of
	// warnings. Meant for validation runs.
	Strict bool

	// Names resolves telescope ids to array element names in log output.
	// Optional.
	Names *instrument.Registry
}

func (o Options) telName(tel domain.TelescopeID) string {
	if o.Names == nil {
		return ""
	}
	return o.Names.ElementName(tel)
}

// CorrelatedEvent is one trigger record joined with the matching telescope
// records. Telescopes holds an entry per telescope that produced data;
// Missing lists the referenced telescopes for which no record was found
// within the lookahead bound. Immutable once yielded.
type CorrelatedEvent struct {
	EventID               uint64
	SBID                  uint64
	ObsID                 uint64
	TriggerTime           time.Time
	Trigger               *container.SubarrayEvent
	TelescopesWithTrigger []domain.TelescopeID
	Telescopes            map[domain.TelescopeID]*container.TelescopeEvent
	Missing               []domain.TelescopeID
}

// Summary strips the payloads for downstream publication.
func (e *CorrelatedEvent) Summary() domain.EventSummary {
	withData := make([]domain.TelescopeID, 0, len(e.Telescopes))
	for tel := range e.Telescopes {
		withData = append(withData, tel)
	}
	sort.Slice(withData, func(i, j int) bool { return withData[i] < withData[j] })
	return domain.EventSummary{
		EventID:               e.EventID,
		SBID:                  e.SBID,
		ObsID:                 e.ObsID,
		TriggerTime:           e.TriggerTime,
		TelescopesWithTrigger: e.TelescopesWithTrigger,
		TelescopesWithData:    withData,
		MissingTelescopes:     e.Missing,
	}
}

// Correlator drives one trigger multiplexer and one multiplexer per
// configured telescope. Single threaded and pull based: I/O happens only
// inside Next.
type Correlator struct {
	log  *zap.Logger
	opts Options

	trigger    *stream.Mux[*container.SubarrayEvent]
	telescopes map[domain.TelescopeID]*stream.Mux[*container.TelescopeEvent]

	// buffers holds records pulled while searching for a specific event id,
	// keyed by their own id. Entries are transient: consumed on a later
	// match or discarded at close.
	buffers map[domain.TelescopeID]map[uint64]*container.TelescopeEvent

	missingCount uint64
	closed       bool
}

// Open opens the trigger stream and one telescope stream per entry of
// telescopePaths. A failure while opening telescope stream k releases the
// trigger stream and streams 1..k-1 before returning.
func Open(triggerPath string, telescopePaths map[domain.TelescopeID]string, opts Options, log *zap.Logger, prov stream.Recorder) (*Correlator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("correlator")

	c := &Correlator{
		log:        log,
		opts:       opts,
		telescopes: make(map[domain.TelescopeID]*stream.Mux[*container.TelescopeEvent]),
		buffers:    make(map[domain.TelescopeID]map[uint64]*container.TelescopeEvent),
	}

	trigger, err := stream.OpenTriggerMux(triggerPath, opts.Stream, log, prov)
	if err != nil {
		return nil, fmt.Errorf("open trigger stream: %w", err)
	}
	c.trigger = trigger

	tels := make([]domain.TelescopeID, 0, len(telescopePaths))
	for tel := range telescopePaths {
		tels = append(tels, tel)
	}
	sort.Slice(tels, func(i, j int) bool { return tels[i] < tels[j] })

	for _, tel := range tels {
		m, err := stream.OpenTelescopeMux(telescopePaths[tel], opts.Stream, log, prov)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("open telescope %d stream: %w", tel, err)
		}
		c.telescopes[tel] = m
		c.buffers[tel] = make(map[uint64]*container.TelescopeEvent)
	}
	return c, nil
}

// Next yields the next correlated event. ok=false once the trigger stream
// is exhausted, regardless of telescope stream state.
func (c *Correlator) Next() (*CorrelatedEvent, bool, error) {
	if c.closed {
		return nil, false, nil
	}
	trig, ok, err := c.trigger.Next()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	ev := &CorrelatedEvent{
		EventID:     trig.EventId,
		SBID:        trig.SbId,
		ObsID:       trig.ObsId,
		TriggerTime: trig.EventTime(),
		Trigger:     trig,
		Telescopes:  make(map[domain.TelescopeID]*container.TelescopeEvent),
	}
	for _, id := range trig.TelIdsWithTrigger {
		ev.TelescopesWithTrigger = append(ev.TelescopesWithTrigger, domain.TelescopeID(id))
	}

	for _, id := range trig.TelIdsWithData {
		tel := domain.TelescopeID(id)
		rec, found, err := c.fetch(tel, trig.EventId)
		if err != nil {
			return nil, false, err
		}
		if !found {
			c.missingCount++
			ev.Missing = append(ev.Missing, tel)
			continue
		}
		ev.Telescopes[tel] = rec
	}
	return ev, true, nil
}

// fetch finds the record of one telescope for the given event id, looking
// ahead at most OpenSourceCount records into the telescope's stream. Pulled
// records with other ids are buffered under their own id for later triggers.
func (c *Correlator) fetch(tel domain.TelescopeID, eventID uint64) (*container.TelescopeEvent, bool, error) {
	m, ok := c.telescopes[tel]
	if !ok {
		if c.opts.Strict {
			return nil, false, fmt.Errorf("%w: tel %d for event %d", ErrUnconfiguredTelescope, tel, eventID)
		}
		c.log.Warn("trigger references unconfigured telescope",
			zap.Int32("tel_id", int32(tel)),
			zap.String("tel", c.opts.telName(tel)),
			zap.Uint64("event_id", eventID))
		return nil, false, nil
	}

	buf := c.buffers[tel]
	if rec, ok := buf[eventID]; ok {
		delete(buf, eventID)
		return rec, true, nil
	}

	// One pending record per open file is the most a healthy stream can be
	// behind; anything further is treated as missing data.
	bound := m.OpenSourceCount()
	for i := 0; i < bound; i++ {
		rec, ok, err := m.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		if rec.EventId == eventID {
			return rec, true, nil
		}
		buf[rec.EventId] = rec
	}

	if c.opts.Strict {
		return nil, false, fmt.Errorf("%w: tel %d event %d", ErrLookaheadExceeded, tel, eventID)
	}
	c.log.Warn("no telescope record within lookahead bound",
		zap.Int32("tel_id", int32(tel)),
		zap.String("tel", c.opts.telName(tel)),
		zap.Uint64("event_id", eventID),
		zap.Int("lookahead", bound))
	return nil, false, nil
}

// MissingCount reports how many (event, telescope) slots were yielded as
// missing so far.
func (c *Correlator) MissingCount() uint64 { return c.missingCount }

// Close releases every stream opened so far. Idempotent; Next reports
// exhaustion afterwards. Buffered records that never matched are discarded.
func (c *Correlator) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	if c.trigger != nil {
		if err := c.trigger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range c.telescopes {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.buffers = nil
	return errors.Join(errs...)
}
