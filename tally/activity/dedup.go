package activity

import (
	"cmp"
	"slices"
)

// Contains reports whether b's interval lies entirely within a's.
// Intervals are closed, so equal intervals contain each other.
func (a Activity) Contains(b Activity) bool {
	return !b.start.Before(a.start) && !b.EndTime().After(a.EndTime())
}

// Overlaps reports whether one activity's interval is wholly contained in
// the other's. Partial overlap without containment is not a match.
func Overlaps(a, b Activity) bool {
	return a.Contains(b) || b.Contains(a)
}

// Compare orders activities by distance descending, then start time
// ascending, then name ascending.
func Compare(a, b Activity) int {
	if c := cmp.Compare(b.distance, a.distance); c != 0 {
		return c
	}
	if c := a.start.Compare(b.start); c != 0 {
		return c
	}
	return cmp.Compare(a.name, b.name)
}

// Deduplicate collapses overlapping recordings of the same workout.
// Activities are only compared within their own category; categories are
// processed in order of first appearance. The input slice is not modified.
func Deduplicate(acts []Activity) []Activity {
	order, groups := partition(acts)
	out := make([]Activity, 0, len(acts))
	for _, category := range order {
		out = append(out, DeduplicateCategory(groups[category])...)
	}
	return out
}

// DeduplicateCategory runs the clustering step over activities that are
// already known to share a category.
//
// The head of the sorted candidates becomes the representative; every
// remaining candidate overlapping it joins its cluster. Membership is not
// transitive: only overlap with the current representative counts. The
// cluster's survivor is the minimum by Compare over its members.
func DeduplicateCategory(acts []Activity) []Activity {
	remaining := slices.Clone(acts)
	slices.SortStableFunc(remaining, Compare)

	survivors := make([]Activity, 0, len(remaining))
	for len(remaining) > 0 {
		rep := remaining[0]

		cluster := make([]Activity, 0, 1)
		rest := make([]Activity, 0, len(remaining))
		for _, candidate := range remaining {
			if Overlaps(rep, candidate) {
				cluster = append(cluster, candidate)
			} else {
				rest = append(rest, candidate)
			}
		}

		survivors = append(survivors, slices.MinFunc(cluster, Compare))
		remaining = rest
	}
	return survivors
}

func partition(acts []Activity) ([]string, map[string][]Activity) {
	order := []string{}
	groups := make(map[string][]Activity)
	for _, a := range acts {
		if _, seen := groups[a.category]; !seen {
			order = append(order, a.category)
		}
		groups[a.category] = append(groups[a.category], a)
	}
	return order, groups
}
