package acada

import (
	"path/filepath"
	"testing"
)

func TestTelescopeEventsDir(t *testing.T) {
	layout := DefaultLayout()
	trigger := filepath.Join("dl0", "array", "ctao-acada-n", "acada-adh", "triggers", "2023", "08", "01", "SUB001_SWAT001_20230802T021531_SBID0000000000000000123_OBSID0000000000000000456_SUBARRAY_CHUNK000.fits.fz")

	dir, err := layout.TelescopeEventsDir(trigger, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("dl0", "TEL001", "ctao-acada-n", "acada-adh", "events", "2023", "08", "01")
	if dir != want {
		t.Fatalf("events dir:\ngot:  %s\nwant: %s", dir, want)
	}
}

func TestTelescopeChunkPath(t *testing.T) {
	layout := DefaultLayout()
	trigger := filepath.Join("dl0", "array", "ctao-acada-n", "acada-adh", "triggers", "2023", "08", "01", "SUB001_SWAT001_20230802T021531_SBID0000000000000000123_OBSID0000000000000000456_SUBARRAY_CHUNK000.fits.fz")

	got, err := layout.TelescopeChunkPath(trigger, 3, ConventionDPPSICD)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("dl0", "TEL003", "ctao-acada-n", "acada-adh", "events", "2023", "08", "01", "TEL003_SWAT001_20230802T021531_SBID0000000000000000123_OBSID0000000000000000456_CHUNK000.fits.fz")
	if got != want {
		t.Fatalf("telescope chunk path:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestTelescopeEventsDirRequiresFixedSegments(t *testing.T) {
	layout := DefaultLayout()
	if _, err := layout.TelescopeEventsDir(filepath.Join("some", "other", "tree", "file.fits.fz"), 1); err == nil {
		t.Fatal("expected error for path without fixed segments")
	}
}
