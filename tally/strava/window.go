package strava

import "time"

// YearWindow returns the calendar year as [Jan 1 00:00, Jan 1 00:00 next year)
// in loc. A nil loc means time.Local.
func YearWindow(year int, loc *time.Location) (after, before time.Time) {
	if loc == nil {
		loc = time.Local
	}
	after = time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	before = time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
	return after, before
}
