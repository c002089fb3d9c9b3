package hrtime

import (
	"testing"
	"time"
)

func TestRoundTripWholeNanoseconds(t *testing.T) {
	orig := time.Date(2023, 8, 2, 2, 15, 31, 123456789, time.UTC)
	hr := FromTime(orig)
	back := hr.Time()
	if !back.Equal(orig) {
		t.Fatalf("round trip changed time: %v -> %v", orig, back)
	}
}

func TestQuarterNanosecondRounding(t *testing.T) {
	// 10 qns = 2.5 ns rounds to 3 ns.
	hr := HighRes{Seconds: taiOffset, QuarterNs: 10}
	if got := hr.Time().Nanosecond(); got != 3 {
		t.Fatalf("expected 3ns, got %d", got)
	}
}

func TestBeforeOrdersBySecondsThenQuarterNs(t *testing.T) {
	a := HighRes{Seconds: 100, QuarterNs: 400}
	b := HighRes{Seconds: 100, QuarterNs: 401}
	c := HighRes{Seconds: 101, QuarterNs: 0}
	if !a.Before(b) || !b.Before(c) || b.Before(a) {
		t.Fatalf("ordering violated: %v %v %v", a, b, c)
	}
}

func TestTAIEpochMapsToUTC(t *testing.T) {
	hr := HighRes{Seconds: taiOffset, QuarterNs: 0}
	if got := hr.Time(); got.Unix() != 0 {
		t.Fatalf("expected unix epoch, got %v", got)
	}
}
