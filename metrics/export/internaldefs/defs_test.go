package internaldefs

import (
	"strings"
	"testing"
)

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets([]uint64{1, 0, 2})
	want := [8]uint64{1, 1, 3, 3, 3, 3, 3, 3}
	if got != want {
		t.Fatalf("CumulativeBuckets = %v, want %v", got, want)
	}

	got = CumulativeBuckets([]uint64{1, 1, 1, 1, 1, 1, 1, 1, 99})
	if got[7] != 8 {
		t.Fatalf("extra buckets must be ignored, got %v", got)
	}
}

func TestNamesArePrefixedAndUnique(t *testing.T) {
	seen := map[string]bool{AuditDroppedName: true}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, Prefix) || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %q must be %s*_total", def.Name, Prefix)
		}
		if seen[def.Name] {
			t.Fatalf("duplicate series %q", def.Name)
		}
		seen[def.Name] = true
	}
	for _, def := range HistogramDefs {
		if seen[def.Name] {
			t.Fatalf("duplicate series %q", def.Name)
		}
		seen[def.Name] = true
	}
}
