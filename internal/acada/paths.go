// Package acada parses and renders ACADA chunk file names.
//
// A chunk file name encodes which array element and data source produced it,
// the scheduling block and observation it belongs to, and its position in
// the chunk sequence. Parsing and rendering are exact inverses: rendering a
// parsed name reproduces the original byte for byte, including zero padding
// widths. Rendering also doubles as glob pattern construction by setting the
// data source, timestamp or chunk fields to their wildcard values.
package acada

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

// Convention selects one of the supported file naming schemes.
type Convention string

const (
	// ConventionRel1 matches names like
	// Tel001_SDH_3001_20231003T204445_sbid2000000008_obid2000000016_9.fits.fz
	ConventionRel1 Convention = "acada_rel1"

	// ConventionDPPSICD matches names like
	// TEL001_SDH001_20231013T220427_SBID00..02000000013_OBSID00..27_TEL_SHOWER_CHUNK000.fits.fz
	// and the subarray trigger variant with a SUB prefix. SBID, OBSID and
	// the data type segment are optional.
	ConventionDPPSICD Convention = "acada_dpps_icd"
)

var (
	ErrUnknownConvention = errors.New("unknown filename convention")
	ErrNameMismatch      = errors.New("filename does not match convention")
)

// Element prefixes for the DPPS ICD convention.
const (
	ElementTelescope = "TEL"
	ElementAuxiliary = "AUX"
	ElementSubarray  = "SUB"
)

// Wildcard is the glob wildcard used when rendering discovery patterns.
const Wildcard = "*"

// WildcardChunk renders the chunk field as a wildcard.
const WildcardChunk = -1

// FileNameInfo holds the decoded components of a chunk file name.
//
// Numeric fields keep their zero padding widths so that rendering round
// trips exactly. SBID and OBSID are nil when the segment is absent
// (DPPS ICD only; both are mandatory under rel1). DataSource and Timestamp
// may be set to Wildcard and Chunk to WildcardChunk before rendering to
// build a glob pattern.
type FileNameInfo struct {
	ElementType string // ElementTelescope, ElementAuxiliary or ElementSubarray
	ElementID   int

	DataSource string
	Timestamp  string

	SBID     *uint64
	SBIDPad  int
	OBSID    *uint64
	OBSIDPad int

	DataType string // optional, e.g. "TEL_SHOWER" or "SUBARRAY"

	Chunk    int
	ChunkPad int

	ExtraSuffix string
}

var rel1Re = regexp.MustCompile(
	`^Tel(?P<tel_id>\d+)_(?P<data_source>SDH_\d+)_(?P<timestamp>\d{8}T\d{6})` +
		`_sbid(?P<sb_id>\d+)_obid(?P<obs_id>\d+)_(?P<chunk>\d+)(?P<extra_suffix>.*)\.fits\.fz$`)

var dppsICDRe = regexp.MustCompile(
	`^(?:SUB(?P<subarray_id>\d+)|(?P<ae_type>TEL|AUX)(?P<ae_id>\d+))` +
		`_(?P<data_source>[A-Z]+\d*)` +
		`_(?P<timestamp>\d{8}T\d{6})` +
		`(?:_SBID(?P<sb_id>\d+))?` +
		`(?:_OBSID(?P<obs_id>\d+))?` +
		`(?:_(?P<data_type>[A-Za-z0-9_]+))?` +
		`_CHUNK(?P<chunk>\d+)(?P<extra_suffix>.*)\.fits\.fz$`)

// Parse decodes the final path element of path according to the convention.
func Parse(path string, convention Convention) (FileNameInfo, error) {
	name := filepath.Base(path)
	switch convention {
	case ConventionRel1:
		return parseWith(rel1Re, name, convention, true)
	case ConventionDPPSICD:
		return parseWith(dppsICDRe, name, convention, false)
	default:
		return FileNameInfo{}, fmt.Errorf("%w: %q", ErrUnknownConvention, convention)
	}
}

func parseWith(re *regexp.Regexp, name string, convention Convention, rel1 bool) (FileNameInfo, error) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return FileNameInfo{}, fmt.Errorf("%w: %q does not match %s", ErrNameMismatch, name, convention)
	}
	groups := map[string]string{}
	for i, g := range re.SubexpNames() {
		if g != "" && m[i] != "" {
			groups[g] = m[i]
		}
	}

	info := FileNameInfo{
		DataSource:  groups["data_source"],
		Timestamp:   groups["timestamp"],
		DataType:    groups["data_type"],
		ExtraSuffix: groups["extra_suffix"],
	}

	switch {
	case rel1:
		info.ElementType = ElementTelescope
		info.ElementID = mustInt(groups["tel_id"])
	case groups["subarray_id"] != "":
		info.ElementType = ElementSubarray
		info.ElementID = mustInt(groups["subarray_id"])
	default:
		info.ElementType = groups["ae_type"]
		info.ElementID = mustInt(groups["ae_id"])
	}

	if s, ok := groups["sb_id"]; ok {
		v := mustUint(s)
		info.SBID = &v
		info.SBIDPad = len(s)
	}
	if s, ok := groups["obs_id"]; ok {
		v := mustUint(s)
		info.OBSID = &v
		info.OBSIDPad = len(s)
	}

	chunk := groups["chunk"]
	info.Chunk = mustInt(chunk)
	info.ChunkPad = len(chunk)

	if rel1 && (info.SBID == nil || info.OBSID == nil) {
		return FileNameInfo{}, fmt.Errorf("%w: %q is missing sbid/obid", ErrNameMismatch, name)
	}
	return info, nil
}

// Format renders info back into a file name under the convention. It is the
// exact inverse of Parse for any parsed name. Fields set to Wildcard (or
// WildcardChunk for the chunk field) render as glob wildcards.
func Format(info FileNameInfo, convention Convention) (string, error) {
	switch convention {
	case ConventionRel1:
		return formatRel1(info)
	case ConventionDPPSICD:
		return formatDPPSICD(info)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConvention, convention)
	}
}

func formatRel1(info FileNameInfo) (string, error) {
	if info.SBID == nil || info.OBSID == nil {
		return "", fmt.Errorf("%s requires sbid and obid", ConventionRel1)
	}
	return fmt.Sprintf("Tel%03d_%s_%s_sbid%0*d_obid%0*d_%s%s.fits.fz",
		info.ElementID, info.DataSource, info.Timestamp,
		info.SBIDPad, *info.SBID,
		info.OBSIDPad, *info.OBSID,
		chunkField(info), info.ExtraSuffix), nil
}

func formatDPPSICD(info FileNameInfo) (string, error) {
	var prefix string
	switch info.ElementType {
	case ElementSubarray:
		prefix = fmt.Sprintf("SUB%03d", info.ElementID)
	case ElementTelescope, ElementAuxiliary:
		prefix = fmt.Sprintf("%s%03d", info.ElementType, info.ElementID)
	default:
		return "", fmt.Errorf("unknown element type %q", info.ElementType)
	}

	name := prefix + "_" + info.DataSource + "_" + info.Timestamp
	if info.SBID != nil {
		name += fmt.Sprintf("_SBID%0*d", info.SBIDPad, *info.SBID)
	}
	if info.OBSID != nil {
		name += fmt.Sprintf("_OBSID%0*d", info.OBSIDPad, *info.OBSID)
	}
	if info.DataType != "" {
		name += "_" + info.DataType
	}
	name += "_CHUNK" + chunkField(info) + info.ExtraSuffix + ".fits.fz"
	return name, nil
}

func chunkField(info FileNameInfo) string {
	if info.Chunk == WildcardChunk {
		return Wildcard
	}
	return fmt.Sprintf("%0*d", info.ChunkPad, info.Chunk)
}

func mustInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func mustUint(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}
