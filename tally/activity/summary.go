package activity

import (
	"fmt"
	"sort"
	"strings"
)

// Unit is a display unit for distances.
type Unit string

const (
	UnitKilometers Unit = "km"
	UnitMiles      Unit = "mi"
)

const metersPerMile = 1609.344

// ParseUnit accepts "km" or "mi" (case-insensitive).
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitKilometers:
		return UnitKilometers, nil
	case UnitMiles:
		return UnitMiles, nil
	}
	return "", fmt.Errorf("unknown distance unit %q, expected km or mi", s)
}

// FromMeters converts meters into the unit. No rounding is applied.
func (u Unit) FromMeters(m float64) float64 {
	if u == UnitMiles {
		return m / metersPerMile
	}
	return m / 1000
}

// Bucket aggregates a group of activities.
type Bucket struct {
	Name     string
	Count    int
	Meters   float64
	Distance float64 // Meters converted to the summary unit
}

func (b *Bucket) add(a Activity) {
	b.Count++
	b.Meters += a.distance
}

func (b *Bucket) finish(u Unit) {
	b.Distance = u.FromMeters(b.Meters)
}

// SummaryOptions controls Summarize.
type SummaryOptions struct {
	Unit Unit
	// DedupCategories lists the categories that are de-duplicated before
	// totalling. Empty means only running.
	DedupCategories []string
}

// Summary holds per-bucket totals for a set of activities.
type Summary struct {
	Unit              Unit
	Runs              Bucket
	VirtualRides      Bucket
	OutdoorRides      Bucket
	TrainerRides      Bucket
	AllRides          Bucket
	Other             []Bucket // one per remaining category, sorted by name
	Total             int      // activities in the input
	Deduplicated      int      // activities after de-duplication
	DuplicatesRemoved int
}

// Buckets returns the named buckets in display order.
func (s Summary) Buckets() []Bucket {
	out := []Bucket{s.Runs, s.VirtualRides, s.OutdoorRides, s.TrainerRides, s.AllRides}
	return append(out, s.Other...)
}

// Summarize partitions activities into running, virtual cycling, outdoor
// cycling and trainer cycling buckets, de-duplicates the configured
// categories, and totals each bucket.
func Summarize(acts []Activity, opts SummaryOptions) Summary {
	unit := opts.Unit
	if unit == "" {
		unit = UnitKilometers
	}
	dedup := map[string]bool{CategoryRun: true}
	if len(opts.DedupCategories) > 0 {
		dedup = make(map[string]bool, len(opts.DedupCategories))
		for _, c := range opts.DedupCategories {
			dedup[c] = true
		}
	}

	s := Summary{
		Unit:         unit,
		Runs:         Bucket{Name: "Runs"},
		VirtualRides: Bucket{Name: "Virtual rides"},
		OutdoorRides: Bucket{Name: "Outdoor rides"},
		TrainerRides: Bucket{Name: "Trainer rides"},
		AllRides:     Bucket{Name: "All rides"},
		Total:        len(acts),
	}

	order, groups := partition(acts)
	other := make(map[string]*Bucket)
	for _, category := range order {
		group := groups[category]
		if dedup[category] {
			group = DeduplicateCategory(group)
		}
		s.Deduplicated += len(group)

		for _, a := range group {
			switch {
			case category == CategoryRun:
				s.Runs.add(a)
			case category == CategoryVirtualRide:
				s.VirtualRides.add(a)
				s.AllRides.add(a)
			case category == CategoryRide && a.trainer:
				s.TrainerRides.add(a)
				s.AllRides.add(a)
			case category == CategoryRide:
				s.OutdoorRides.add(a)
				s.AllRides.add(a)
			default:
				b, ok := other[category]
				if !ok {
					b = &Bucket{Name: category}
					other[category] = b
				}
				b.add(a)
			}
		}
	}
	s.DuplicatesRemoved = s.Total - s.Deduplicated

	for _, b := range []*Bucket{&s.Runs, &s.VirtualRides, &s.OutdoorRides, &s.TrainerRides, &s.AllRides} {
		b.finish(unit)
	}
	names := make([]string, 0, len(other))
	for name := range other {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b := other[name]
		b.finish(unit)
		s.Other = append(s.Other, *b)
	}
	return s
}
