package acada

import (
	"fmt"
	"path/filepath"
	"strings"

	"telemux/internal/domain"
)

// Layout captures the fixed segments of the DL0 directory tree:
//
//	DL0/array/<user>/acada-adh/triggers/YYYY/MM/DD/SUB001_..._CHUNK000.fits.fz
//	DL0/TEL001/<user>/acada-adh/events/YYYY/MM/DD/TEL001_..._CHUNK000.fits.fz
//
// A telescope's events directory is derived from the trigger file's own
// directory by substituting the array segment with the telescope segment and
// the triggers segment with the events segment. The segments are
// configuration constants, never parsed from file contents.
type Layout struct {
	ArraySegment      string `mapstructure:"array_segment"`
	TriggersSegment   string `mapstructure:"triggers_segment"`
	EventsSegment     string `mapstructure:"events_segment"`
	TelescopeTemplate string `mapstructure:"telescope_template"`
}

// DefaultLayout returns the segment names of the ACADA-DPPS ICD tree.
func DefaultLayout() Layout {
	return Layout{
		ArraySegment:      "array",
		TriggersSegment:   "triggers",
		EventsSegment:     "events",
		TelescopeTemplate: "TEL%03d",
	}
}

// TelescopeEventsDir maps the directory of a trigger file to the events
// directory of one telescope. Both fixed segments must be present in the
// trigger path.
func (l Layout) TelescopeEventsDir(triggerPath string, tel domain.TelescopeID) (string, error) {
	dir := filepath.Dir(triggerPath)
	parts := strings.Split(dir, string(filepath.Separator))

	replacedArray, replacedTriggers := false, false
	for i, p := range parts {
		switch p {
		case l.ArraySegment:
			if !replacedArray {
				parts[i] = fmt.Sprintf(l.TelescopeTemplate, int(tel))
				replacedArray = true
			}
		case l.TriggersSegment:
			if !replacedTriggers {
				parts[i] = l.EventsSegment
				replacedTriggers = true
			}
		}
	}
	if !replacedArray || !replacedTriggers {
		return "", fmt.Errorf("trigger path %q does not contain the %q and %q segments", triggerPath, l.ArraySegment, l.TriggersSegment)
	}
	return strings.Join(parts, string(filepath.Separator)), nil
}

// TelescopeChunkPath derives the path of a telescope's matching chunk file
// from a trigger chunk path: same directory date and chunk index, element
// swapped to the telescope. The data source field is carried over verbatim
// and only useful as a discovery seed, so callers should open the result
// with source discovery enabled.
func (l Layout) TelescopeChunkPath(triggerPath string, tel domain.TelescopeID, convention Convention) (string, error) {
	info, err := Parse(triggerPath, convention)
	if err != nil {
		return "", err
	}
	dir, err := l.TelescopeEventsDir(triggerPath, tel)
	if err != nil {
		return "", err
	}
	info.ElementType = ElementTelescope
	info.ElementID = int(tel)
	// Telescope event files carry no data type segment.
	info.DataType = ""
	name, err := Format(info, convention)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
