package activity

import (
	"math"
	"testing"
	"time"
)

func ride(t *testing.T, name string, distance float64, startOffset int64, category string, trainer bool) Activity {
	t.Helper()
	a, err := New(name, distance, 3600, category, base.Add(time.Duration(startOffset)*time.Second), trainer)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", name, err)
	}
	return a
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		in      string
		want    Unit
		wantErr bool
	}{
		{"km", UnitKilometers, false},
		{"KM", UnitKilometers, false},
		{" mi ", UnitMiles, false},
		{"furlong", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseUnit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseUnit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseUnit(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnit_FromMeters(t *testing.T) {
	if got := UnitKilometers.FromMeters(12345); !approxEqual(got, 12.345) {
		t.Errorf("km.FromMeters(12345) = %v, want 12.345", got)
	}
	if got := UnitMiles.FromMeters(1609.344); !approxEqual(got, 1) {
		t.Errorf("mi.FromMeters(1609.344) = %v, want 1", got)
	}
}

func TestSummarize_RideBucketsPartitionWithoutDoubleCounting(t *testing.T) {
	acts := []Activity{
		ride(t, "commute", 12000, 0, CategoryRide, false),
		ride(t, "gravel", 45000, 86400, CategoryRide, false),
		ride(t, "rollers", 20000, 2*86400, CategoryRide, true),
		ride(t, "zwift", 30000, 3*86400, CategoryVirtualRide, false),
		// Same interval as the trainer ride; rides are not de-duplicated.
		ride(t, "zwift mirror", 30000, 2*86400, CategoryVirtualRide, false),
	}

	s := Summarize(acts, SummaryOptions{Unit: UnitKilometers})

	if s.OutdoorRides.Count != 2 || !approxEqual(s.OutdoorRides.Meters, 57000) {
		t.Errorf("outdoor = %+v, want 2 rides / 57000m", s.OutdoorRides)
	}
	if s.TrainerRides.Count != 1 || !approxEqual(s.TrainerRides.Meters, 20000) {
		t.Errorf("trainer = %+v, want 1 ride / 20000m", s.TrainerRides)
	}
	if s.VirtualRides.Count != 2 || !approxEqual(s.VirtualRides.Meters, 60000) {
		t.Errorf("virtual = %+v, want 2 rides / 60000m", s.VirtualRides)
	}

	sum := s.OutdoorRides.Meters + s.TrainerRides.Meters + s.VirtualRides.Meters
	if !approxEqual(sum, s.AllRides.Meters) {
		t.Errorf("bucket sum %v != all rides %v", sum, s.AllRides.Meters)
	}
	if s.AllRides.Count != len(acts) {
		t.Errorf("all rides count = %d, want %d", s.AllRides.Count, len(acts))
	}
	if !approxEqual(s.AllRides.Distance, 137) {
		t.Errorf("all rides distance = %v km, want 137", s.AllRides.Distance)
	}
}

func TestSummarize_DeduplicatesRuns(t *testing.T) {
	a := mustActivity(t, "A", 10000, 0, 3600, CategoryRun)
	b := mustActivity(t, "B", 9000, 60, 3000, CategoryRun)
	c := mustActivity(t, "C", 5000, 7200, 9000, CategoryRun)

	s := Summarize([]Activity{a, b, c}, SummaryOptions{Unit: UnitKilometers})

	if s.Runs.Count != 2 {
		t.Errorf("runs count = %d, want 2", s.Runs.Count)
	}
	if !approxEqual(s.Runs.Distance, 15) {
		t.Errorf("runs distance = %v km, want 15", s.Runs.Distance)
	}
	if s.DuplicatesRemoved != 1 {
		t.Errorf("duplicates removed = %d, want 1", s.DuplicatesRemoved)
	}
	if s.Total != 3 || s.Deduplicated != 2 {
		t.Errorf("total/deduplicated = %d/%d, want 3/2", s.Total, s.Deduplicated)
	}
}

func TestSummarize_OtherCategories(t *testing.T) {
	acts := []Activity{
		mustActivity(t, "laps", 1500, 0, 1800, "Swim"),
		mustActivity(t, "hill", 8000, 86400, 90000, "Hike"),
		mustActivity(t, "pool", 2000, 2*86400, 2*86400+1800, "Swim"),
	}

	s := Summarize(acts, SummaryOptions{Unit: UnitMiles})

	if len(s.Other) != 2 {
		t.Fatalf("other buckets = %d, want 2", len(s.Other))
	}
	if s.Other[0].Name != "Hike" || s.Other[1].Name != "Swim" {
		t.Errorf("other buckets not sorted by name: %q, %q", s.Other[0].Name, s.Other[1].Name)
	}
	if s.Other[1].Count != 2 || !approxEqual(s.Other[1].Meters, 3500) {
		t.Errorf("swim bucket = %+v, want 2 / 3500m", s.Other[1])
	}
	if s.Runs.Count != 0 || s.AllRides.Count != 0 {
		t.Error("runs and rides should be empty")
	}
}

func TestSummarize_CustomDedupCategories(t *testing.T) {
	outer := ride(t, "outdoor", 40000, 0, CategoryRide, false)
	inner, err := New("phone", 39000, 1800, CategoryRide, base.Add(60*time.Second), false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	runA := mustActivity(t, "A", 10000, 0, 3600, CategoryRun)
	runB := mustActivity(t, "B", 9000, 60, 3000, CategoryRun)

	s := Summarize([]Activity{outer, inner, runA, runB}, SummaryOptions{
		Unit:            UnitKilometers,
		DedupCategories: []string{CategoryRide},
	})

	if s.OutdoorRides.Count != 1 {
		t.Errorf("outdoor rides = %d, want 1 after de-duplication", s.OutdoorRides.Count)
	}
	if s.Runs.Count != 2 {
		t.Errorf("runs = %d, want 2 when running is not de-duplicated", s.Runs.Count)
	}
}

func TestSummarize_DefaultUnit(t *testing.T) {
	s := Summarize(nil, SummaryOptions{})
	if s.Unit != UnitKilometers {
		t.Errorf("default unit = %q, want km", s.Unit)
	}
	if got := len(s.Buckets()); got != 5 {
		t.Errorf("Buckets() = %d, want 5 with no other categories", got)
	}
}
