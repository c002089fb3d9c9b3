package domain

import "time"

// TelescopeID identifies one array element (telescope) within a subarray.
type TelescopeID int32

// StreamRole classifies what a chunk file sequence carries. Recorded in
// provenance and used to pick the container table decoder.
type StreamRole string

const (
	RoleTrigger   StreamRole = "trigger"
	RoleTelescope StreamRole = "telescope"
)

// EventSummary is the downstream-facing view of one correlated event, as
// published by the emit adapters. Payloads stay behind in the correlator;
// the summary only names which telescopes contributed.
type EventSummary struct {
	EventID               uint64
	SBID                  uint64
	ObsID                 uint64
	TriggerTime           time.Time
	TelescopesWithTrigger []TelescopeID
	TelescopesWithData    []TelescopeID
	MissingTelescopes     []TelescopeID
}
