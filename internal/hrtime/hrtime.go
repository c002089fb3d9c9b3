// Package hrtime converts CTA high resolution timestamps.
//
// Acquisition hardware stamps records with a pair of unsigned 32 bit
// counters: whole seconds since the TAI epoch and quarter nanoseconds within
// the second. Go's time.Time only resolves nanoseconds, so a round trip
// through time.Time loses the two sub-nanosecond bits; conversions round to
// the nearest representable value.
package hrtime

import "time"

const qnsPerNs = 4

// taiOffset is the fixed TAI-UTC offset in seconds. Leap second handling is
// out of scope at this layer; the offset only matters for displaying
// wall-clock times, ordering uses the raw counters.
const taiOffset = 37

// HighRes is a CTA high resolution timestamp.
type HighRes struct {
	Seconds   uint32
	QuarterNs uint32
}

// Time converts the timestamp to a time.Time in UTC, rounding quarter
// nanoseconds to the nearest nanosecond.
func (h HighRes) Time() time.Time {
	ns := (int64(h.QuarterNs) + qnsPerNs/2) / qnsPerNs
	return time.Unix(int64(h.Seconds)-taiOffset, ns).UTC()
}

// FromTime converts a time.Time to a high resolution timestamp.
func FromTime(t time.Time) HighRes {
	t = t.UTC()
	return HighRes{
		Seconds:   uint32(t.Unix() + taiOffset),
		QuarterNs: uint32(t.Nanosecond() * qnsPerNs),
	}
}

// Before reports whether h is earlier than other.
func (h HighRes) Before(other HighRes) bool {
	if h.Seconds != other.Seconds {
		return h.Seconds < other.Seconds
	}
	return h.QuarterNs < other.QuarterNs
}
